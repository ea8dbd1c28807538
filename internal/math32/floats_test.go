package math32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{5, 4, 3, 2, 1}
	assert.Equal(t, float32(35), Dot(a, b))
}

func TestDotInt8(t *testing.T) {
	a := []float32{0.5, -0.5, 1, 0, 2}
	b := []int8{2, 2, -3, 127, 1}
	assert.Equal(t, float32(0.5*2-0.5*2-3+2), DotInt8(a, b))
}

func TestNormInt8(t *testing.T) {
	assert.Equal(t, float32(5), NormInt8([]int8{3, 4}))
	assert.Equal(t, float32(0), NormInt8([]int8{0, 0, 0}))
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
