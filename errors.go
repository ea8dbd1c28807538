package binvecdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/binvecdb/docstore"
	binindex "github.com/hupe1980/binvecdb/index/binary"
)

var (
	// ErrNotFound is returned when a document id is absent from the database.
	ErrNotFound = errors.New("document not found")

	// ErrEmptyIndex is returned when a search is attempted against a
	// database with zero indexed documents.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrClosed is returned when an operation is attempted on a closed
	// database.
	ErrClosed = errors.New("database is closed")
)

// ValidationError indicates malformed input rejected before any mutation.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.cause }

// InitializationError indicates an ambiguous or corrupt folder state at
// open time.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type InitializationError struct {
	Folder string
	Reason string
	cause  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize database at %q: %s", e.Folder, e.Reason)
}

func (e *InitializationError) Unwrap() error { return e.cause }

// translateError maps component errors onto the public error contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var nf *binindex.ErrIDNotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Argument normalization.
	if errors.Is(err, binindex.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	var dup *binindex.ErrDuplicateID
	if errors.As(err, &dup) {
		return &ValidationError{Reason: fmt.Sprintf("duplicate id %d", dup.ID), cause: err}
	}
	var csm *binindex.ErrCodeSizeMismatch
	if errors.As(err, &csm) {
		return &ValidationError{
			Reason: fmt.Sprintf("embedding code size mismatch: expected %d bytes, got %d", csm.Expected, csm.Actual),
			cause:  err,
		}
	}
	var id *binindex.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ValidationError{Reason: fmt.Sprintf("invalid dimension %d", id.Dimension), cause: err}
	}

	return err
}
