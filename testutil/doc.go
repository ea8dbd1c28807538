// Package testutil provides testing utilities.
//
// This package is intended for use in tests and benchmarks only. It provides
// a seeded random vector generator and a deterministic mock embedder that
// produces consistent float, int8 and binary fidelities for the same text.
package testutil
