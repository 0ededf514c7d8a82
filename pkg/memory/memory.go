// Package memory provides the pluggable memory layer the benchmark
// evaluates.
//
// Adapters own named, isolated per-conversation indexes. Insert adds one
// extracted turn unit to a conversation's index, Query retrieves the most
// relevant stored units for a question, and Consolidate is an opaque
// maintenance hook backends may use to reorganize what they have stored.
// The orchestrator treats the backend as a black box: no internal memory
// representation leaks through this interface.
//
// A query against one conversation's index never returns units from
// another conversation. Backends enforce the isolation; the orchestrator
// relies on it.
//
// Adapters are pluggable via configuration:
//
//	[memory]
//	provider = "amem"
package memory

import (
	"context"
	"sort"

	"github.com/papercomputeco/membench/pkg/dataset"
)

// Adapter handles per-conversation memory indexing and retrieval.
type Adapter interface {
	// Insert adds a unit to the conversation's index and returns the
	// stored unit's id. Not idempotent; callers insert each unit exactly
	// once, in turn order.
	Insert(ctx context.Context, conversationID string, unit dataset.Unit) (string, error)

	// Query returns at most topN stored units relevant to text, ordered
	// by descending score with ties broken by insertion order. Returns
	// ErrIndexNotReady when the conversation has no completed index.
	Query(ctx context.Context, conversationID, text string, topN int) ([]Match, error)

	// Consolidate lets the backend reorganize a conversation's memories.
	// Called periodically during indexing; failures are non-fatal.
	Consolidate(ctx context.Context, conversationID string) error

	// Close releases adapter resources.
	Close() error
}

// Completer is an optional adapter capability for marking a conversation's
// index complete and checking for the marker. The indexer marks indexes
// complete after the last insert; queries against unmarked indexes fail
// with ErrIndexNotReady.
type Completer interface {
	// MarkComplete finalizes a conversation's index.
	MarkComplete(ctx context.Context, conversationID string) error

	// Completed reports whether a conversation's index carries a
	// completion marker.
	Completed(conversationID string) bool
}

// Resetter is an optional adapter capability for discarding a
// conversation's index, including its completion marker, so a rebuild
// starts from scratch.
type Resetter interface {
	Reset(ctx context.Context, conversationID string) error
}

// Match is one retrieved unit with its relevance score.
type Match struct {
	// UnitID identifies the stored unit within its conversation.
	UnitID string `json:"id"`

	// Content is the stored unit text.
	Content string `json:"content"`

	// Score is the backend's relevance score, higher is better.
	Score float64 `json:"score"`

	// Sequence is the unit's insertion sequence within its conversation,
	// used to break score ties deterministically.
	Sequence int `json:"sequence"`

	// Enrichment carried alongside the unit, when the backend stores it.
	Keywords []string `json:"keywords,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Context  string   `json:"context,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

// SortMatches orders matches by descending score, breaking ties by
// ascending insertion sequence. Backends with undefined tie behavior call
// this so equal-scored results always come back in insertion order.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Sequence < matches[j].Sequence
	})
}
