package report

import (
	"fmt"
	"sync"

	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/memory/amem"
)

// GoldResolver maps a query's gold evidence keys ("sessionID:messageIndex")
// to the unit ids the memory backend stored.
type GoldResolver interface {
	Resolve(conversationID string, evidences []string) ([]string, error)
}

// SidecarResolver resolves evidence keys through the units sidecar every
// completed index persists. An evidence key no unit covers is kept
// verbatim: it still counts in the recall denominator, it just can never
// be retrieved.
type SidecarResolver struct {
	indexDir string

	mu     sync.Mutex
	tables map[string]map[string]string
}

// NewSidecarResolver creates a resolver over the given index directory.
func NewSidecarResolver(indexDir string) *SidecarResolver {
	return &SidecarResolver{
		indexDir: indexDir,
		tables:   make(map[string]map[string]string),
	}
}

// Resolve maps evidence keys to stored unit ids, deduplicated in key
// order.
func (r *SidecarResolver) Resolve(conversationID string, evidences []string) ([]string, error) {
	table, err := r.table(conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading units sidecar: %w", err)
	}

	ids := make([]string, 0, len(evidences))
	seen := make(map[string]struct{}, len(evidences))
	for _, key := range evidences {
		id, ok := table[key]
		if !ok {
			id = key
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, nil
}

// table loads and caches one conversation's evidence-to-unit mapping.
func (r *SidecarResolver) table(conversationID string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if table, ok := r.tables[conversationID]; ok {
		return table, nil
	}

	records, err := amem.ReadUnits(r.indexDir, conversationID)
	if err != nil {
		return nil, err
	}

	table := make(map[string]string, len(records)*2)
	for _, rec := range records {
		table[dataset.EvidenceKey(rec.SessionID, rec.UserIndex)] = rec.ID
		if rec.ReplyIndex >= 0 {
			table[dataset.EvidenceKey(rec.SessionID, rec.ReplyIndex)] = rec.ID
		}
	}

	r.tables[conversationID] = table
	return table, nil
}

var _ GoldResolver = (*SidecarResolver)(nil)
