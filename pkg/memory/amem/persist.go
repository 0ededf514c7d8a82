package amem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	unitsFile         = "units.json"
	completedFlagFile = "completed.flag"
)

// UnitRecord is one stored note in the per-conversation units sidecar.
// Evaluation resolves gold evidence references against the session and
// message indexes recorded here.
type UnitRecord struct {
	ID         string   `json:"id"`
	Sequence   int      `json:"sequence"`
	TurnIndex  int      `json:"turn_index"`
	SessionID  string   `json:"session_id"`
	UserIndex  int      `json:"user_index"`
	ReplyIndex int      `json:"reply_index"`
	Content    string   `json:"content"`
	Keywords   []string `json:"keywords,omitempty"`
	Context    string   `json:"context,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Links      []string `json:"links,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// UnitsPath returns the units sidecar path for a conversation.
func UnitsPath(indexDir, conversationID string) string {
	return filepath.Join(indexDir, conversationID, unitsFile)
}

// ReadUnits loads a conversation's units sidecar.
func ReadUnits(indexDir, conversationID string) ([]UnitRecord, error) {
	data, err := os.ReadFile(UnitsPath(indexDir, conversationID))
	if err != nil {
		return nil, err
	}

	var records []UnitRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing units sidecar: %w", err)
	}
	return records, nil
}

func writeUnits(dir string, records []UnitRecord) error {
	if records == nil {
		records = []UnitRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, unitsFile), data)
}

func completedFlagPath(dir string) string {
	return filepath.Join(dir, completedFlagFile)
}

func writeCompletedFlag(dir string) error {
	return writeFileAtomic(completedFlagPath(dir), []byte(time.Now().Format(time.RFC3339)))
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
