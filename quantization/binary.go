// Package quantization provides the bit-packed binary vector encoding used by
// the coarse retrieval stage.
//
// Binary quantization compresses float32 vectors (4 bytes/dim) to a single bit
// per dimension for 32x memory savings. Distance is computed using Hamming
// distance (popcount of XOR), which is extremely fast on modern CPUs using the
// POPCNT instruction. The accuracy loss is significant for fine-grained
// similarity, so binary codes are only used for coarse filtering and are
// rescored against higher-fidelity representations afterwards.
package quantization

import "math/bits"

// Bit layout: dimension j maps to byte j/8, bit 7-(j%8). Most-significant-bit
// first within each byte, matching the packing used by embedding providers for
// ubinary output. Pack and UnpackBipolar must agree on this layout.

// CodeSize returns the packed size in bytes for the given dimensionality.
func CodeSize(dimension int) int {
	return (dimension + 7) / 8
}

// Pack quantizes a float32 vector to its packed binary code.
// Values >= 0 become 1, values < 0 become 0 (sign-based quantization).
func Pack(v []float32) []byte {
	code := make([]byte, CodeSize(len(v)))
	for i, val := range v {
		if val >= 0 {
			code[i/8] |= 1 << (7 - i%8)
		}
	}
	return code
}

// UnpackBipolar expands a packed binary code into a ±1-valued float32 vector:
// bit 0 becomes -1.0, bit 1 becomes +1.0.
//
// The symmetric mapping is a numeric contract, not a convenience: dot products
// of a float query against the expanded code are only meaningful when the two
// halves of the bit alphabet pull in opposite directions. Do not replace this
// with a 0/1 expansion.
//
// out must have length len(code)*8.
func UnpackBipolar(code []byte, out []float32) {
	for i, b := range code {
		base := i * 8
		for j := 0; j < 8; j++ {
			if b&(1<<(7-j)) != 0 {
				out[base+j] = 1
			} else {
				out[base+j] = -1
			}
		}
	}
}

// HammingDistance computes the Hamming distance between two packed binary
// codes of equal length.
// Uses POPCNT (population count) for maximum performance.
func HammingDistance(a, b []byte) int {
	var dist int

	// Process 8 bytes at a time using uint64 POPCNT.
	i := 0
	for ; i+8 <= len(a); i += 8 {
		aWord := uint64(a[i]) | uint64(a[i+1])<<8 | uint64(a[i+2])<<16 | uint64(a[i+3])<<24 |
			uint64(a[i+4])<<32 | uint64(a[i+5])<<40 | uint64(a[i+6])<<48 | uint64(a[i+7])<<56
		bWord := uint64(b[i]) | uint64(b[i+1])<<8 | uint64(b[i+2])<<16 | uint64(b[i+3])<<24 |
			uint64(b[i+4])<<32 | uint64(b[i+5])<<40 | uint64(b[i+6])<<48 | uint64(b[i+7])<<56
		dist += bits.OnesCount64(aWord ^ bWord)
	}

	for ; i < len(a); i++ {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}

	return dist
}
