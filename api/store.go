package api

import (
	"context"
	"sync"

	"github.com/papercomputeco/membench/pkg/archive"
)

// Store serves archive reads through a swappable driver so a running
// server can reopen the backing store when the file changes on disk.
type Store struct {
	mu     sync.RWMutex
	driver archive.Driver
}

// NewStore wraps an archive driver.
func NewStore(driver archive.Driver) *Store {
	return &Store{driver: driver}
}

// Swap replaces the underlying driver and returns the previous one so
// the caller can close it.
func (s *Store) Swap(driver archive.Driver) archive.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.driver
	s.driver = driver
	return old
}

// Put stores a record through the current driver.
func (s *Store) Put(ctx context.Context, record *archive.Record) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.Put(ctx, record)
}

// Get retrieves a record by its run id through the current driver.
func (s *Store) Get(ctx context.Context, runID string) (*archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.Get(ctx, runID)
}

// Has checks if a run id is archived through the current driver.
func (s *Store) Has(ctx context.Context, runID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.Has(ctx, runID)
}

// List returns all archived runs through the current driver.
func (s *Store) List(ctx context.Context) ([]*archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.List(ctx)
}

// Close closes the current driver.
func (s *Store) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.Close()
}

var _ archive.Driver = (*Store)(nil)
