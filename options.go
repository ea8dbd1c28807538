package binvecdb

import (
	"log/slog"

	"github.com/hupe1980/binvecdb/codec"
	"github.com/hupe1980/binvecdb/persistence"
)

type options struct {
	dimension        int
	scoreThreshold   float32
	batchSize        int
	embedConcurrency int
	compression      persistence.CompressionType
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
}

func defaultOptions() options {
	return options{
		dimension:        1024,
		scoreThreshold:   0.5,
		batchSize:        960,
		embedConcurrency: 4,
		compression:      persistence.CompressionZSTD,
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures database open behavior.
type Option func(*options)

// WithDimension configures the embedding dimensionality in bits.
// It must match the output of the injected embedder and must be a positive
// multiple of 8. Defaults to 1024.
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithScoreThreshold configures the relevance gate: when the best cosine
// similarity of a search falls below the threshold, the result is marked as
// not confident and no hits are returned. Defaults to 0.5.
func WithScoreThreshold(threshold float32) Option {
	return func(o *options) {
		o.scoreThreshold = threshold
	}
}

// WithBatchSize configures how many documents are embedded per request
// during ingestion. Defaults to 960, matching the batch limit of common
// embedding APIs.
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
	}
}

// WithEmbedConcurrency bounds the number of embedding requests in flight
// during ingestion. Defaults to 4.
func WithEmbedConcurrency(n int) Option {
	return func(o *options) {
		o.embedConcurrency = n
	}
}

// WithIndexCompression configures the compression of the code section in
// the index snapshot. Defaults to persistence.CompressionZSTD.
func WithIndexCompression(compression persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = compression
	}
}

// WithCodec configures the codec used to serialize document payloads.
//
// If nil is passed, codec.Default is used. Payloads written with one codec
// are not guaranteed to be readable with another, so the codec must stay
// stable for the lifetime of a database folder.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for operations.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// AddOptions contains per-call options for AddDocuments and AddEmbeddings.
type AddOptions struct {
	// SaveIndex persists the index snapshot once after the batch has been
	// applied. Defaults to true.
	SaveIndex bool
}

// RemoveOptions contains per-call options for RemoveDocument.
type RemoveOptions struct {
	// SaveIndex persists the index snapshot after the removal.
	// Defaults to true.
	SaveIndex bool
}

// SearchOptions contains per-call options for Search and SearchEmbedding.
type SearchOptions struct {
	// BinaryOversample multiplies k to size the Hamming candidate set of
	// phase I. Defaults to 10.
	BinaryOversample int

	// Int8Oversample multiplies k to size the candidate set surviving
	// phase II into the int8 rescoring. Defaults to 3.
	Int8Oversample int
}

// DefaultSearchOptions contains the default search options.
var DefaultSearchOptions = SearchOptions{
	BinaryOversample: 10,
	Int8Oversample:   3,
}
