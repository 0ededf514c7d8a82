package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a dataset file: a JSON array of conversation records.
// Conversations missing an id are assigned one from their array position.
// Duplicate ids are rejected since they key per-conversation indexes.
// A non-zero limit caps how many conversations are returned.
func Load(path string, limit int) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var conversations []Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}

	seen := make(map[string]bool, len(conversations))
	for i := range conversations {
		if conversations[i].ID == "" {
			conversations[i].ID = fmt.Sprintf("conv_%d", i)
		}
		if seen[conversations[i].ID] {
			return nil, fmt.Errorf("duplicate conversation id %q", conversations[i].ID)
		}
		seen[conversations[i].ID] = true
	}

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	return conversations, nil
}
