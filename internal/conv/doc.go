// Package conv provides safe integer type conversion utilities.
//
// These functions perform bounds checking to prevent integer overflow/underflow
// when converting between signed/unsigned and different bit-width integer types.
// They are used when validating untrusted data from disk (file headers, counts)
// and when converting between Go's int and fixed-width serialized types.
package conv
