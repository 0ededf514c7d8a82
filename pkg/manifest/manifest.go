// Package manifest records what a benchmark run did: which conversations
// ran, how each one ended, and how long each pipeline stage took. The
// manifest is the run's only shared mutable state; every write takes the
// mutex so workers can record results concurrently.
package manifest

import (
	"sync"
	"time"
)

// SchemaVersion is the current manifest artifact schema.
const SchemaVersion = 1

// Status is the terminal state of one conversation at one stage.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Pipeline stage names used in conversation records and stage timings.
const (
	StageExtract  = "extract"
	StageIndex    = "index"
	StageRetrieve = "retrieve"
	StageEvaluate = "evaluate"
	StageGenerate = "generate"
)

// ConversationStatus is the outcome of one conversation at one stage.
type ConversationStatus struct {
	ConversationID string `json:"conversation_id"`
	Stage          string `json:"stage"`
	Status         Status `json:"status"`

	// Reason explains failed and skipped statuses.
	Reason string `json:"reason,omitempty"`

	// Units is the number of memory units indexed, on index records.
	Units int `json:"units,omitempty"`

	// Queries is the number of queries executed, on retrieve records.
	Queries int `json:"queries,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

// StageTiming is the wall-clock span of one pipeline stage.
type StageTiming struct {
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Manifest is the append-safe record of a single run. Create it with New
// and share the pointer; it must not be copied once in use.
type Manifest struct {
	mu sync.Mutex

	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`

	// Config is the full configuration snapshot the run started with.
	Config any `json:"config,omitempty"`

	Stages        []StageTiming        `json:"stages"`
	Conversations []ConversationStatus `json:"conversations"`
}

// NewRunID derives the id that keys every artifact of one run.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

// New creates a manifest for a run starting now.
func New(runID string, config any) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Config:        config,
		Stages:        []StageTiming{},
		Conversations: []ConversationStatus{},
	}
}

// Record stores the outcome for one (conversation, stage) pair. A second
// record for the same pair replaces the first wholesale, so a record is
// never half old and half new.
func (m *Manifest) Record(status ConversationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.Conversations {
		if existing.ConversationID == status.ConversationID && existing.Stage == status.Stage {
			m.Conversations[i] = status
			return
		}
	}

	m.Conversations = append(m.Conversations, status)
}

// RecordStage appends the wall-clock timing for one pipeline stage.
func (m *Manifest) RecordStage(stage string, startedAt, finishedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Stages = append(m.Stages, StageTiming{
		Stage:      stage,
		StartedAt:  startedAt.UTC(),
		FinishedAt: finishedAt.UTC(),
		DurationMs: finishedAt.Sub(startedAt).Milliseconds(),
	})
}

// Finalize stamps the run end time.
func (m *Manifest) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FinishedAt = time.Now().UTC()
}

// Counts tallies conversation outcomes for one stage.
func (m *Manifest) Counts(stage string) map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[Status]int)
	for _, c := range m.Conversations {
		if c.Stage == stage {
			counts[c.Status]++
		}
	}

	return counts
}

// StatusFor returns the recorded outcome for one (conversation, stage)
// pair, if any.
func (m *Manifest) StatusFor(conversationID, stage string) (ConversationStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.Conversations {
		if c.ConversationID == conversationID && c.Stage == stage {
			return c, true
		}
	}

	return ConversationStatus{}, false
}
