// Package inmemory provides a map-backed archive driver for tests and
// throwaway runs.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/membench/pkg/archive"
)

// Driver implements archive.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is the in memory map of run records keyed by run id
	records map[string]*archive.Record
}

// NewDriver creates a new in-memory archive.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*archive.Record),
	}
}

// Put stores a record. Returns true if the record was newly inserted,
// false if the run id was already archived (idempotent insert).
func (d *Driver) Put(_ context.Context, record *archive.Record) (bool, error) {
	if record == nil {
		return false, errors.New("cannot store nil record")
	}
	if record.RunID == "" {
		return false, errors.New("record has no run id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[record.RunID]; ok {
		return false, nil
	}

	d.records[record.RunID] = record
	return true, nil
}

// Get retrieves a record by its run id.
func (d *Driver) Get(_ context.Context, runID string) (*archive.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.records[runID]
	if !ok {
		return nil, archive.NotFoundError{RunID: runID}
	}

	return record, nil
}

// Has checks if a run id is archived.
func (d *Driver) Has(_ context.Context, runID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.records[runID]
	return ok, nil
}

// List returns all archived runs, newest first.
func (d *Driver) List(_ context.Context) ([]*archive.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]*archive.Record, 0, len(d.records))
	for _, record := range d.records {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].RunID > records[j].RunID
	})

	return records, nil
}

// Count returns the number of archived runs.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Close is a no-op for the in-memory archive.
func (d *Driver) Close() error {
	return nil
}
