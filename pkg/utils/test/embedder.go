package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/papercomputeco/membench/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Exact texts can be pinned via Embeddings; anything else gets a
// deterministic token-hash vector, so texts sharing words come out more
// similar than unrelated ones.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// Dimensions sets the fallback vector size. Zero means 8.
	Dimensions int

	// FailOn causes Embed to fail when the input contains the substring.
	FailOn string

	// Calls records every embedded text in order.
	Calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)

	if m.FailOn != "" && strings.Contains(text, m.FailOn) {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	dims := m.Dimensions
	if dims == 0 {
		dims = 8
	}

	vec := make([]float32, dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}

	return vec, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
