// Package embedding defines the external embedding capability and an HTTP
// client for Cohere-compatible embedding endpoints.
package embedding

import "context"

// InputType tags what is being embedded. Document and query embeddings are
// asymmetric: the same text embedded as a document and as a query does not
// necessarily yield identical vectors, and the retrieval pipeline depends on
// using the right mode on each side.
type InputType string

const (
	// InputTypeDocument marks texts being ingested into the database.
	InputTypeDocument InputType = "search_document"
	// InputTypeQuery marks texts used to search the database.
	InputTypeQuery InputType = "search_query"
)

// Format selects an embedding fidelity.
type Format string

const (
	// FormatBinary requests bit-packed 1-bit-per-dimension embeddings.
	FormatBinary Format = "ubinary"
	// FormatInt8 requests 8-bit quantized embeddings.
	FormatInt8 Format = "int8"
	// FormatFloat requests full-precision float embeddings.
	FormatFloat Format = "float"
)

// Vectors holds per-format embeddings, one entry per input text in input
// order. Only the requested formats are populated.
type Vectors struct {
	Binary [][]byte
	Int8   [][]int8
	Float  [][]float32
}

// Embedder produces embeddings for batches of texts.
//
// Implementations must preserve input order and should be treated as
// potentially slow network calls - no retry or timeout policy is imposed
// beyond what the implementation itself provides.
type Embedder interface {
	Embed(ctx context.Context, texts []string, input InputType, formats []Format) (*Vectors, error)

	// Model returns the embedding model identifier. It is recorded in the
	// database config at creation and validated on every reopen.
	Model() string
}
