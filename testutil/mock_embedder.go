package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hupe1980/binvecdb/embedding"
	"github.com/hupe1980/binvecdb/quantization"
)

// MockEmbedder is a deterministic embedding.Embedder for tests. The same
// text always maps to the same unit vector, regardless of input type, and
// the int8 and binary fidelities are derived from the float vector, so
// rescoring behaves like it does against a real embedding API.
type MockEmbedder struct {
	dim   int
	model string
}

// NewMockEmbedder creates a mock embedder producing vectors with the given
// number of dimensions. The dimension must be a positive multiple of 8.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 || dim%8 != 0 {
		panic("testutil: mock embedder dimension must be a positive multiple of 8")
	}
	return &MockEmbedder{dim: dim, model: "mock-embed-v1"}
}

// Model implements embedding.Embedder.
func (m *MockEmbedder) Model() string { return m.model }

// Embed implements embedding.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, _ embedding.InputType, formats []embedding.Format) (*embedding.Vectors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &embedding.Vectors{}
	for _, f := range formats {
		switch f {
		case embedding.FormatFloat:
			out.Float = make([][]float32, 0, len(texts))
		case embedding.FormatInt8:
			out.Int8 = make([][]int8, 0, len(texts))
		case embedding.FormatBinary:
			out.Binary = make([][]byte, 0, len(texts))
		}
	}

	for _, text := range texts {
		vec := m.Vector(text)
		for _, f := range formats {
			switch f {
			case embedding.FormatFloat:
				out.Float = append(out.Float, vec)
			case embedding.FormatInt8:
				out.Int8 = append(out.Int8, quantizeInt8(vec))
			case embedding.FormatBinary:
				out.Binary = append(out.Binary, quantization.Pack(vec))
			}
		}
	}

	return out, nil
}

// Vector returns the deterministic unit vector for text.
func (m *MockEmbedder) Vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dim)
	var norm float64
	for j := range vec {
		v := math.Sin(float64(seed%1000)/100.0 + float64(j)*0.7)
		vec[j] = float32(v)
		norm += v * v
		seed = seed*6364136223846793005 + 1442695040888963407
	}

	inv := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= inv
	}
	return vec
}

func quantizeInt8(vec []float32) []int8 {
	out := make([]int8, len(vec))
	for j, v := range vec {
		q := math.Round(float64(v) * 127)
		if q > 127 {
			q = 127
		} else if q < -127 {
			q = -127
		}
		out[j] = int8(q)
	}
	return out
}
