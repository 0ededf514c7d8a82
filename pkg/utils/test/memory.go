package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/memory"
)

// MockAdapter is a test memory adapter that records calls and returns
// configurable results. It also implements memory.Completer.
type MockAdapter struct {
	mu sync.Mutex

	// Inserted accumulates units per conversation in insertion order.
	Inserted map[string][]dataset.Unit

	// QueryResults is returned by Query, keyed by conversation id.
	QueryResults map[string][]memory.Match

	// TransientInserts makes that many leading Insert calls fail with
	// ErrUnavailable before succeeding, to exercise retry paths.
	TransientInserts int

	// FailInsertOn makes Insert fail permanently for units whose content
	// contains the substring.
	FailInsertOn string

	// NotReady marks conversations whose Query fails with
	// ErrIndexNotReady regardless of the completion map.
	NotReady map[string]bool

	// TransientQueries makes that many leading Query calls fail with
	// ErrUnavailable before succeeding.
	TransientQueries int

	// FailQueryOn makes Query fail permanently for query texts
	// containing the substring.
	FailQueryOn string

	// ConsolidateCalls counts Consolidate invocations per conversation.
	ConsolidateCalls map[string]int

	// FailConsolidate makes Consolidate return an error.
	FailConsolidate bool

	// ResetCalls records conversations passed to Reset, in call order.
	ResetCalls []string

	completed map[string]bool
	closed    bool
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Inserted:         make(map[string][]dataset.Unit),
		QueryResults:     make(map[string][]memory.Match),
		NotReady:         make(map[string]bool),
		ConsolidateCalls: make(map[string]int),
		completed:        make(map[string]bool),
	}
}

func (m *MockAdapter) Insert(_ context.Context, conversationID string, unit dataset.Unit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TransientInserts > 0 {
		m.TransientInserts--
		return "", fmt.Errorf("%w: mock transient insert failure", memory.ErrUnavailable)
	}
	if m.FailInsertOn != "" && strings.Contains(unit.Content, m.FailInsertOn) {
		return "", fmt.Errorf("mock permanent insert failure for turn %d", unit.TurnIndex)
	}

	m.Inserted[conversationID] = append(m.Inserted[conversationID], unit)
	return fmt.Sprintf("unit_%05d", unit.TurnIndex), nil
}

func (m *MockAdapter) Query(_ context.Context, conversationID, text string, topN int) ([]memory.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.NotReady[conversationID] || !m.completed[conversationID] {
		return nil, fmt.Errorf("%w: conversation %s", memory.ErrIndexNotReady, conversationID)
	}
	if m.TransientQueries > 0 {
		m.TransientQueries--
		return nil, fmt.Errorf("%w: mock transient query failure", memory.ErrUnavailable)
	}
	if m.FailQueryOn != "" && strings.Contains(text, m.FailQueryOn) {
		return nil, fmt.Errorf("mock permanent query failure")
	}

	matches := m.QueryResults[conversationID]
	if len(matches) > topN {
		matches = matches[:topN]
	}

	out := make([]memory.Match, len(matches))
	copy(out, matches)
	return out, nil
}

func (m *MockAdapter) Consolidate(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsolidateCalls[conversationID]++
	if m.FailConsolidate {
		return fmt.Errorf("mock consolidate failure for %s", conversationID)
	}
	return nil
}

func (m *MockAdapter) MarkComplete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed[conversationID] = true
	return nil
}

func (m *MockAdapter) Completed(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.completed[conversationID]
}

func (m *MockAdapter) Reset(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResetCalls = append(m.ResetCalls, conversationID)
	delete(m.Inserted, conversationID)
	delete(m.completed, conversationID)
	return nil
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockAdapter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// MarkReady marks a conversation's index complete without going through
// MarkComplete, for seeding query-stage tests.
func (m *MockAdapter) MarkReady(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed[conversationID] = true
}

var (
	_ memory.Adapter   = (*MockAdapter)(nil)
	_ memory.Completer = (*MockAdapter)(nil)
	_ memory.Resetter  = (*MockAdapter)(nil)
)
