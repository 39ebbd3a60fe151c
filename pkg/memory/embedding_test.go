package memory

import (
	"context"
	"crypto/sha256"
	"sync/atomic"
)

// MockEmbeddingProvider is a deterministic embedding provider for tests.
// The vector is derived from the text's hash so identical text always
// embeds identically and distinct text (almost) never collides.
type MockEmbeddingProvider struct {
	dimension int
	calls     atomic.Int64
	failWith  error
}

func NewMockEmbeddingProvider(dimension int) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{dimension: dimension}
}

// FailWith makes every subsequent call return err.
func (m *MockEmbeddingProvider) FailWith(err error) {
	m.failWith = err
}

// Calls returns the number of embedding calls made.
func (m *MockEmbeddingProvider) Calls() int64 {
	return m.calls.Load()
}

func (m *MockEmbeddingProvider) Dimension() int {
	return m.dimension
}

func (m *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.failWith != nil {
		return nil, m.failWith
	}

	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dimension)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}

func (m *MockEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
