// Package archive records completed benchmark runs so results can be
// compared across runs. Archiving is best-effort from the pipeline's
// view: a failed archive write is logged, never fatal.
package archive

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one archived run: the identifying metadata, outcome counts,
// and the headline metrics a browser needs without reopening the run's
// artifacts.
type Record struct {
	RunID       string    `json:"run_id"`
	DatasetPath string    `json:"dataset_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Succeeded, Failed, and Skipped count conversations by final
	// indexing outcome.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	DurationMs int64 `json:"duration_ms"`

	// Config is the run's configuration snapshot, stored verbatim.
	Config json.RawMessage `json:"config,omitempty"`

	// Metrics is the run's headline metrics summary, stored verbatim.
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// Driver defines the interface for persisting and retrieving run records
// in an archive backend.
type Driver interface {
	// Put stores a record. Returns true if the record was newly
	// inserted, false if the run id was already archived. Re-archiving
	// an existing run id is a no-op.
	Put(ctx context.Context, record *Record) (bool, error)

	// Get retrieves a record by its run id.
	Get(ctx context.Context, runID string) (*Record, error)

	// Has checks if a run id is archived.
	Has(ctx context.Context, runID string) (bool, error)

	// List returns all archived runs, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Close closes the archive and releases any resources.
	Close() error
}
