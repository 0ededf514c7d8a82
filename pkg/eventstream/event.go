package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRunStarted is emitted when a benchmark run begins.
	EventTypeRunStarted = "membench.run.started"

	// EventTypeRunFinished is emitted when a benchmark run completes.
	EventTypeRunFinished = "membench.run.finished"

	// EventTypeStageCompleted is emitted after each pipeline stage.
	EventTypeStageCompleted = "membench.stage.completed"

	// EventTypeConversationIndexed is emitted after a conversation's
	// index is marked complete.
	EventTypeConversationIndexed = "membench.conversation.indexed"

	// EventTypeConversationFailed is emitted when a conversation fails
	// at any stage.
	EventTypeConversationFailed = "membench.conversation.failed"
)

// RunEvent is a transport-neutral lifecycle event payload.
type RunEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	RunID         string    `json:"run_id"`

	// Stage names the pipeline stage for stage and conversation events.
	Stage string `json:"stage,omitempty"`

	// ConversationID is set on conversation-scoped events.
	ConversationID string `json:"conversation_id,omitempty"`

	// Units is the indexed unit count on conversation.indexed events.
	Units int `json:"units,omitempty"`

	// Reason explains conversation.failed events.
	Reason string `json:"reason,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewRunEvent builds an event envelope with a fresh id and timestamp.
// Callers fill the type-specific fields.
func NewRunEvent(eventType, runID string) *RunEvent {
	return &RunEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RunID:         runID,
	}
}
