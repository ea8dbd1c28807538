package binvecdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/binvecdb/embedding"
	"github.com/hupe1980/binvecdb/internal/math32"
	"github.com/hupe1980/binvecdb/quantization"
)

// Hit is a single search result.
type Hit[T any] struct {
	// DocID is the external document id.
	DocID int64

	// Document is the decoded payload.
	Document T

	// HammingScore is the phase I Hamming distance (lower is closer).
	HammingScore int

	// BinaryScore is the phase II dot product of the float query against
	// the unpacked ±1 binary embedding.
	BinaryScore float32

	// CosineScore is the phase III cosine similarity of the float query
	// against the stored int8 embedding. Hits are ordered descending by
	// this score.
	CosineScore float32
}

// SearchResult is the outcome of a search.
//
// Confident distinguishes "no relevant match" from "matches found, possibly
// fewer than k": when the best cosine similarity falls below the score
// threshold, Confident is false and Hits is empty.
type SearchResult[T any] struct {
	Hits      []Hit[T]
	Confident bool
}

// Search embeds the query text and runs the three-phase pipeline:
//
//	Phase I   coarse recall: Hamming k-NN over the binary index,
//	          k * BinaryOversample candidates
//	Phase II  float x binary rescoring: dot product of the float query
//	          against unpacked ±1 candidate embeddings, keep
//	          k * Int8Oversample
//	Phase III float x int8 rescoring: cosine similarity against the stored
//	          int8 embeddings, keep top k
//
// Returns ErrEmptyIndex when nothing is indexed and ErrInvalidK for k <= 0.
func (db *DB[T]) Search(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) (*SearchResult[T], error) {
	start := time.Now()

	result, err := db.search(ctx, query, k, optFns)

	db.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	if result != nil {
		db.opts.logger.LogSearch(ctx, k, len(result.Hits), result.Confident, err)
	} else {
		db.opts.logger.LogSearch(ctx, k, 0, false, err)
	}

	return result, err
}

func (db *DB[T]) search(ctx context.Context, query string, k int, optFns []func(o *SearchOptions)) (*SearchResult[T], error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if db.index.Count() == 0 {
		return nil, ErrEmptyIndex
	}

	vecs, err := db.embedder.Embed(ctx, []string{query}, embedding.InputTypeQuery,
		[]embedding.Format{embedding.FormatFloat, embedding.FormatBinary})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs.Float) != 1 || len(vecs.Binary) != 1 {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"embedder returned %d float / %d binary embeddings for one query",
			len(vecs.Float), len(vecs.Binary))}
	}

	return db.searchEmbedding(ctx, vecs.Float[0], vecs.Binary[0], k, optFns)
}

// SearchEmbedding runs the three-phase pipeline from caller-supplied query
// embeddings, bypassing the Embedder. queryFloat must be L2-normalized and
// queryBinary bit-packed to the index code size.
func (db *DB[T]) SearchEmbedding(ctx context.Context, queryFloat []float32, queryBinary []byte, k int, optFns ...func(o *SearchOptions)) (*SearchResult[T], error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if db.index.Count() == 0 {
		return nil, ErrEmptyIndex
	}

	return db.searchEmbedding(ctx, queryFloat, queryBinary, k, optFns)
}

type rescored struct {
	id      int64
	hamming int
	score   float32
}

// searchEmbedding expects db.mu to be held at least for reading.
func (db *DB[T]) searchEmbedding(ctx context.Context, queryFloat []float32, queryBinary []byte, k int, optFns []func(o *SearchOptions)) (*SearchResult[T], error) {
	searchOpts := DefaultSearchOptions
	for _, fn := range optFns {
		fn(&searchOpts)
	}
	if searchOpts.BinaryOversample < 1 || searchOpts.Int8Oversample < 1 {
		return nil, &ValidationError{Reason: "oversample factors must be >= 1"}
	}

	if len(queryFloat) != db.index.Dimension() {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"query dimension mismatch: expected %d, got %d", db.index.Dimension(), len(queryFloat))}
	}

	// Phase I: coarse recall by Hamming distance.
	phaseStart := time.Now()

	binaryK := k * searchOpts.BinaryOversample
	candidates, err := db.index.Search(queryBinary, binaryK)
	if err != nil {
		return nil, translateError(err)
	}

	db.opts.logger.LogSearchPhase(ctx, "hamming", len(candidates), time.Since(phaseStart))
	db.opts.metricsCollector.RecordSearchPhase("hamming", len(candidates), time.Since(phaseStart))

	// Phase II: float x binary rescoring.
	phaseStart = time.Now()

	unpacked := make([]float32, db.index.Dimension())
	scored := make([]rescored, 0, len(candidates))
	for _, c := range candidates {
		code, err := db.index.Reconstruct(c.ID)
		if err != nil {
			return nil, translateError(err)
		}
		quantization.UnpackBipolar(code, unpacked)
		scored = append(scored, rescored{
			id:      c.ID,
			hamming: c.Distance,
			score:   math32.Dot(queryFloat, unpacked),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if limit := k * searchOpts.Int8Oversample; len(scored) > limit {
		scored = scored[:limit]
	}

	db.opts.logger.LogSearchPhase(ctx, "binary", len(scored), time.Since(phaseStart))
	db.opts.metricsCollector.RecordSearchPhase("binary", len(scored), time.Since(phaseStart))

	// Phase III: float x int8 cosine rescoring.
	phaseStart = time.Now()

	hits := make([]Hit[T], 0, len(scored))
	for _, s := range scored {
		rec, err := db.store.Get(ctx, s.id)
		if err != nil {
			return nil, translateError(err)
		}

		var cosine float32
		if norm := math32.NormInt8(rec.EmbInt8); norm > 0 {
			cosine = math32.DotInt8(queryFloat, rec.EmbInt8) / norm
		}

		var doc T
		if err := db.opts.codec.Unmarshal(rec.Payload, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode payload for id %d: %w", s.id, err)
		}

		hits = append(hits, Hit[T]{
			DocID:        s.id,
			Document:     doc,
			HammingScore: s.hamming,
			BinaryScore:  s.score,
			CosineScore:  cosine,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].CosineScore > hits[j].CosineScore
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	db.opts.logger.LogSearchPhase(ctx, "cosine", len(hits), time.Since(phaseStart))
	db.opts.metricsCollector.RecordSearchPhase("cosine", len(hits), time.Since(phaseStart))

	// Relevance gate on the best cosine score.
	if len(hits) == 0 || hits[0].CosineScore < db.opts.scoreThreshold {
		return &SearchResult[T]{Confident: false}, nil
	}

	return &SearchResult[T]{Hits: hits, Confident: true}, nil
}
