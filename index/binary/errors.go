package binary

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d (must be positive and a multiple of 8)", e.Dimension)
}

// ErrCodeSizeMismatch indicates a packed code whose length does not match the
// index code size.
type ErrCodeSizeMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrCodeSizeMismatch) Error() string {
	return fmt.Sprintf("code size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

// ErrDuplicateID indicates an insert for an id that is already indexed.
type ErrDuplicateID struct {
	ID int64
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate id: %d already indexed", e.ID)
}

// ErrIDNotFound indicates an operation on an id that is not indexed.
type ErrIDNotFound struct {
	ID int64
}

func (e *ErrIDNotFound) Error() string {
	return fmt.Sprintf("id not found: %d", e.ID)
}
