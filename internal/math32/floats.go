// Package math32 provides float32 scoring kernels for the rescoring phases.
// This is an internal package - external users should use the root package.
package math32

import "math"

// Dot calculates the dot product of two vectors.
//
// Assumes len(a) == len(b). Caller's responsibility.
func Dot(a, b []float32) float32 {
	var ret float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		ret += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < len(a); i++ {
		ret += a[i] * b[i]
	}
	return ret
}

// DotInt8 calculates the dot product of a float32 query against an int8
// document vector without materializing a dequantized copy.
//
// Assumes len(a) == len(b). Caller's responsibility.
func DotInt8(a []float32, b []int8) float32 {
	var ret float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		ret += a[i]*float32(b[i]) + a[i+1]*float32(b[i+1]) +
			a[i+2]*float32(b[i+2]) + a[i+3]*float32(b[i+3])
	}
	for ; i < len(a); i++ {
		ret += a[i] * float32(b[i])
	}
	return ret
}

// NormInt8 returns the L2 norm of an int8 vector.
func NormInt8(v []int8) float32 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return float32(math.Sqrt(sum))
}

// Normalize scales v to unit L2 length in place. Zero vectors are left
// unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
