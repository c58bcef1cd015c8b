package embedding

import (
	"context"
	"crypto/sha256"
	"math"
	"sync/atomic"
)

// MockBackend produces deterministic unit vectors derived from the text's
// hash. Useful for tests and offline runs: identical text always embeds to
// the identical vector, and related texts do not.
type MockBackend struct {
	dimension int
	calls     atomic.Int64
}

func NewMockBackend(dimension int) *MockBackend {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockBackend{dimension: dimension}
}

func (m *MockBackend) Dimension() int {
	return m.dimension
}

func (m *MockBackend) ModelID() string {
	return "mock"
}

// Calls returns how many backend requests were made. Tests use this to
// verify cache-hit paths never reach the backend.
func (m *MockBackend) Calls() int64 {
	return m.calls.Load()
}

func (m *MockBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

func (m *MockBackend) vectorFor(text string) []float32 {
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, m.dimension)
	var norm float64
	for i := range vec {
		b := sum[i%len(sum)]
		// Spread byte values over [-1, 1), perturbed by position so
		// dimensions beyond 32 stay distinct.
		v := float64(b)/128.0 - 1.0 + float64(i)*1e-3
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
