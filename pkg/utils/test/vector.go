package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/membench/pkg/metrics"
	"github.com/papercomputeco/membench/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver. Query scores stored
// documents by cosine similarity unless Results pins the output, so it
// doubles as a tiny working backend in tests.
type MockVectorDriver struct {
	Documents []vector.Document

	// Results overrides Query's scoring when non-nil.
	Results []vector.QueryResult

	// FailAdd and FailQuery inject connection failures.
	FailAdd   bool
	FailQuery bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make([]vector.Document, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.FailAdd {
		return fmt.Errorf("%w: mock add failure", vector.ErrConnection)
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, fmt.Errorf("%w: mock query failure", vector.ErrConnection)
	}

	if m.Results != nil {
		if len(m.Results) > topK {
			return m.Results[:topK], nil
		}
		return m.Results, nil
	}

	results := make([]vector.QueryResult, 0, len(m.Documents))
	for _, doc := range m.Documents {
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    float32(metrics.Cosine(embedding, doc.Embedding)),
		})
	}

	// Stable sort keeps insertion order among equal scores.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	byID := make(map[string]vector.Document, len(m.Documents))
	for _, doc := range m.Documents {
		byID[doc.ID] = doc
	}

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", vector.ErrNotFound, id)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := m.Documents[:0]
	for _, doc := range m.Documents {
		if !drop[doc.ID] {
			kept = append(kept, doc)
		}
	}
	m.Documents = kept
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
