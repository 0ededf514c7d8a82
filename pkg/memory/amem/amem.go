// Package amem implements memory.Adapter with agentic memory notes over a
// vector store.
//
// Each conversation gets its own isolated index under the adapter's index
// directory. Inserted units are enriched into notes (keywords, context,
// tags) via a single LLM call when a note provider is configured, falling
// back to heuristic keyword extraction when not. The note text plus
// enrichment is embedded and stored; a units sidecar records every note
// for later evidence resolution. Consolidation re-links the most recent
// notes to their nearest neighbors.
package amem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/embeddings"
	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/memory"
	"github.com/papercomputeco/membench/pkg/vector"
	vectorutils "github.com/papercomputeco/membench/pkg/vector/utils"
)

const (
	// DefaultRecentLinks is how many of the most recent notes
	// Consolidate re-links.
	DefaultRecentLinks = 10

	// DefaultNeighbors is how many nearest neighbors each re-linked
	// note records.
	DefaultNeighbors = 5

	// queryOverfetch is how many extra results Query requests beyond
	// topN so score ties at the cutoff resolve by insertion order
	// instead of backend ordering.
	queryOverfetch = 10

	indexFile = "index.db"
)

// Config holds configuration for the amem adapter.
type Config struct {
	// IndexDir is the root directory holding per-conversation indexes
	// and sidecars.
	IndexDir string

	// VectorProvider selects the vector store backend ("sqlitevec",
	// "chroma", "qdrant").
	VectorProvider string

	// VectorTarget is the remote vector store URL. Unused by sqlitevec,
	// which stores indexes under IndexDir.
	VectorTarget string

	// Dimensions is the embedding dimensionality.
	Dimensions uint

	// RecentLinks and Neighbors bound the consolidation pass. Zero
	// values take the defaults.
	RecentLinks int
	Neighbors   int
}

// Adapter implements memory.Adapter with per-conversation vector indexes.
type Adapter struct {
	cfg      Config
	embedder embeddings.Embedder
	notes    llm.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	indexes map[string]*convIndex
}

// convIndex is one conversation's open index.
type convIndex struct {
	driver vector.Driver
	dir    string

	mu      sync.Mutex
	seq     int
	records []UnitRecord
}

// NewAdapter creates an amem adapter. The notes provider is optional;
// without one, enrichment degrades to heuristic keyword extraction.
func NewAdapter(cfg Config, embedder embeddings.Embedder, notes llm.Provider, logger *zap.Logger) (*Adapter, error) {
	if cfg.IndexDir == "" {
		return nil, fmt.Errorf("amem adapter requires an index directory")
	}
	if embedder == nil {
		return nil, fmt.Errorf("amem adapter requires an embedder")
	}
	if cfg.RecentLinks <= 0 {
		cfg.RecentLinks = DefaultRecentLinks
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = DefaultNeighbors
	}

	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	return &Adapter{
		cfg:      cfg,
		embedder: embedder,
		notes:    notes,
		logger:   logger,
		indexes:  make(map[string]*convIndex),
	}, nil
}

// Insert enriches the unit into a note, embeds it, and stores it in the
// conversation's index.
func (a *Adapter) Insert(ctx context.Context, conversationID string, unit dataset.Unit) (string, error) {
	idx, err := a.index(conversationID)
	if err != nil {
		return "", err
	}

	note := a.enrich(ctx, unit.Content)

	vec, err := a.embedder.Embed(ctx, noteText(unit.Content, note))
	if err != nil {
		return "", fmt.Errorf("%w: embedding unit: %v", memory.ErrUnavailable, err)
	}

	idx.mu.Lock()
	seq := idx.seq
	idx.seq++
	idx.mu.Unlock()

	id := UnitID(unit.TurnIndex)
	doc := vector.Document{
		ID:        id,
		Content:   unit.Content,
		Metadata:  noteMetadata(conversationID, unit, note, seq),
		Embedding: vec,
	}
	if err := idx.driver.Add(ctx, []vector.Document{doc}); err != nil {
		if errors.Is(err, vector.ErrConnection) {
			return "", fmt.Errorf("%w: storing unit: %v", memory.ErrUnavailable, err)
		}
		return "", fmt.Errorf("storing unit: %w", err)
	}

	record := UnitRecord{
		ID:         id,
		Sequence:   seq,
		TurnIndex:  unit.TurnIndex,
		SessionID:  unit.SessionID,
		UserIndex:  unit.UserIndex,
		ReplyIndex: unit.ReplyIndex,
		Content:    unit.Content,
		Keywords:   note.Keywords,
		Context:    note.Context,
		Tags:       note.Tags,
		Timestamp:  unit.Timestamp,
	}
	idx.mu.Lock()
	idx.records = append(idx.records, record)
	idx.mu.Unlock()

	return id, nil
}

// Query embeds the text and returns the most relevant stored units,
// stably ordered. Fails with ErrIndexNotReady until the conversation's
// index has been marked complete.
func (a *Adapter) Query(ctx context.Context, conversationID, text string, topN int) ([]memory.Match, error) {
	if topN <= 0 {
		return nil, nil
	}
	if !a.Completed(conversationID) {
		return nil, fmt.Errorf("%w: conversation %s", memory.ErrIndexNotReady, conversationID)
	}

	idx, err := a.index(conversationID)
	if err != nil {
		return nil, err
	}

	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", memory.ErrUnavailable, err)
	}

	results, err := idx.driver.Query(ctx, vec, topN+queryOverfetch)
	if err != nil {
		if errors.Is(err, vector.ErrConnection) {
			return nil, fmt.Errorf("%w: querying index: %v", memory.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, toMatch(res))
	}
	memory.SortMatches(matches)
	if len(matches) > topN {
		matches = matches[:topN]
	}

	return matches, nil
}

// Consolidate re-links the most recent notes to their nearest neighbors
// and records the links in the sidecar state.
func (a *Adapter) Consolidate(ctx context.Context, conversationID string) error {
	idx, err := a.index(conversationID)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	start := max(0, len(idx.records)-a.cfg.RecentLinks)
	recent := make([]UnitRecord, len(idx.records)-start)
	copy(recent, idx.records[start:])
	idx.mu.Unlock()

	for _, record := range recent {
		vec, err := a.embedder.Embed(ctx, record.Content)
		if err != nil {
			return fmt.Errorf("%w: embedding note for consolidation: %v", memory.ErrUnavailable, err)
		}

		// One extra result because the note retrieves itself.
		neighbors, err := idx.driver.Query(ctx, vec, a.cfg.Neighbors+1)
		if err != nil {
			if errors.Is(err, vector.ErrConnection) {
				return fmt.Errorf("%w: linking note %s: %v", memory.ErrUnavailable, record.ID, err)
			}
			return fmt.Errorf("linking note %s: %w", record.ID, err)
		}

		links := make([]string, 0, a.cfg.Neighbors)
		for _, n := range neighbors {
			if n.ID == record.ID {
				continue
			}
			links = append(links, n.ID)
			if len(links) == a.cfg.Neighbors {
				break
			}
		}
		idx.setLinks(record.ID, links)
	}

	if a.logger != nil {
		a.logger.Debug("consolidated recent notes",
			zap.String("conversation", conversationID),
			zap.Int("notes", len(recent)))
	}

	return nil
}

// MarkComplete writes the conversation's units sidecar and completion
// marker. Queries against the conversation succeed from here on.
func (a *Adapter) MarkComplete(ctx context.Context, conversationID string) error {
	idx, err := a.index(conversationID)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	records := make([]UnitRecord, len(idx.records))
	copy(records, idx.records)
	idx.mu.Unlock()

	if err := writeUnits(idx.dir, records); err != nil {
		return fmt.Errorf("writing units sidecar: %w", err)
	}
	if err := writeCompletedFlag(idx.dir); err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}

	if a.logger != nil {
		a.logger.Info("index complete",
			zap.String("conversation", conversationID),
			zap.Int("units", len(records)))
	}

	return nil
}

// Completed reports whether the conversation's index has a completion
// marker on disk.
func (a *Adapter) Completed(conversationID string) bool {
	_, err := os.Stat(completedFlagPath(filepath.Join(a.cfg.IndexDir, conversationID)))
	return err == nil
}

// Reset discards the conversation's index so a rebuild starts from
// scratch. Units recorded in the sidecar are deleted from the vector
// store first, which matters for remote backends whose collections
// outlive the local state.
func (a *Adapter) Reset(ctx context.Context, conversationID string) error {
	idx, err := a.index(conversationID)
	if err != nil {
		return err
	}

	if records, err := ReadUnits(a.cfg.IndexDir, conversationID); err == nil && len(records) > 0 {
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if err := idx.driver.Delete(ctx, ids); err != nil && !errors.Is(err, vector.ErrNotFound) {
			return fmt.Errorf("deleting stored units: %w", err)
		}
	}

	a.mu.Lock()
	delete(a.indexes, conversationID)
	a.mu.Unlock()

	if err := idx.driver.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.RemoveAll(idx.dir); err != nil {
		return fmt.Errorf("removing index directory: %w", err)
	}

	if a.logger != nil {
		a.logger.Info("index reset", zap.String("conversation", conversationID))
	}

	return nil
}

// Close closes every open conversation index.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for id, idx := range a.indexes {
		if err := idx.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index %s: %w", id, err))
		}
	}
	a.indexes = make(map[string]*convIndex)

	return errors.Join(errs...)
}

// index returns the conversation's open index, opening it on first use.
func (a *Adapter) index(conversationID string) (*convIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx, ok := a.indexes[conversationID]; ok {
		return idx, nil
	}

	dir := filepath.Join(a.cfg.IndexDir, conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating conversation index directory: %w", err)
	}

	driver, err := vectorutils.NewDriver(&vectorutils.NewDriverOpts{
		Provider:   a.cfg.VectorProvider,
		TargetURL:  a.cfg.VectorTarget,
		DBPath:     filepath.Join(dir, indexFile),
		Collection: collectionName(conversationID),
		Dimensions: a.cfg.Dimensions,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening index for %s: %v", memory.ErrUnavailable, conversationID, err)
	}

	idx := &convIndex{driver: driver, dir: dir}
	a.indexes[conversationID] = idx

	return idx, nil
}

func (c *convIndex) setLinks(id string, links []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records[i].Links = links
			return
		}
	}
}

// UnitID returns the stable stored id for a turn index. Zero-padded so
// lexical and numeric orderings agree.
func UnitID(turnIndex int) string {
	return fmt.Sprintf("unit_%05d", turnIndex)
}

// collectionName derives a remote collection name from a conversation id,
// keeping only characters every backend accepts.
func collectionName(conversationID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, conversationID)

	name := "membench_" + sanitized
	if len(name) > 60 {
		name = name[:60]
	}
	return name
}

// noteMetadata flattens a unit and its enrichment into driver metadata.
// List values are stored JSON-encoded since metadata values are strings.
func noteMetadata(conversationID string, unit dataset.Unit, note note, seq int) map[string]string {
	meta := map[string]string{
		"category":   conversationID,
		"sequence":   strconv.Itoa(seq),
		"turn_index": strconv.Itoa(unit.TurnIndex),
		"session_id": unit.SessionID,
		"user_index": strconv.Itoa(unit.UserIndex),
	}
	if !unit.Partial() {
		meta["reply_index"] = strconv.Itoa(unit.ReplyIndex)
	}
	if unit.Timestamp != "" {
		meta["timestamp"] = unit.Timestamp
	}
	if len(note.Keywords) > 0 {
		meta["keywords"] = marshalStrings(note.Keywords)
	}
	if note.Context != "" {
		meta["context"] = note.Context
	}

	tags := append([]string{"conv_" + conversationID, "session_" + unit.SessionID}, note.Tags...)
	meta["tags"] = marshalStrings(tags)

	return meta
}

// toMatch converts a driver result back into a memory.Match.
func toMatch(res vector.QueryResult) memory.Match {
	seq, _ := strconv.Atoi(res.Metadata["sequence"])
	return memory.Match{
		UnitID:    res.ID,
		Content:   res.Content,
		Score:     float64(res.Score),
		Sequence:  seq,
		Keywords:  unmarshalStrings(res.Metadata["keywords"]),
		Tags:      unmarshalStrings(res.Metadata["tags"]),
		Context:   res.Metadata["context"],
		Timestamp: res.Metadata["timestamp"],
	}
}

var (
	_ memory.Adapter   = (*Adapter)(nil)
	_ memory.Completer = (*Adapter)(nil)
	_ memory.Resetter  = (*Adapter)(nil)
)
