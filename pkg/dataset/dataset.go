// Package dataset loads conversation benchmark datasets and extracts
// retrievable turn units from their dialog sessions.
package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is one raw utterance inside a dialog session.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one dialog session: an ordered message list with an optional
// wall-clock timestamp covering the whole session.
type Session struct {
	ID       string    `json:"session_id"`
	Datetime string    `json:"datetime,omitempty"`
	Messages []Message `json:"messages"`
}

// Category labels a QA for per-category metric breakdowns. Datasets encode
// it as either a string or a bare number, so it unmarshals from both.
type Category string

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Category(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Category(n.String())
		return nil
	}

	return fmt.Errorf("category must be a string or number, got %s", string(data))
}

// QA is one gold question/answer pair with its evidence references.
// Evidence entries use "sessionID:messageIndex" keys addressing the message
// positions a correct retrieval should surface.
type QA struct {
	QuestionID string   `json:"question_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer,omitempty"`
	Evidences  []string `json:"evidences,omitempty"`
	Category   Category `json:"category,omitempty"`
}

// Conversation is one immutable source record: an id, its dialog sessions,
// and the gold QA annotations used for evaluation.
type Conversation struct {
	ID       string    `json:"conv_id"`
	Sessions []Session `json:"dialogs"`
	QAs      []QA      `json:"qas,omitempty"`
}

// Unit is a single retrievable chunk derived from one conversational turn
// pair. Units are created once by extraction and never mutated.
type Unit struct {
	ConversationID string

	// TurnIndex is the unit's position in extraction order across the
	// whole conversation. Insertion follows this order.
	TurnIndex int

	// Content is the speaker-pair text ("User: ...\nAssistant: ..."), or
	// just the user half for a partial unit.
	Content string

	SessionID string
	Timestamp string

	// UserIndex and ReplyIndex are the message positions of the two
	// halves inside their session. ReplyIndex is -1 for a partial unit.
	UserIndex  int
	ReplyIndex int

	UserRole  string
	ReplyRole string
}

// Partial reports whether the unit is a dangling user turn with no reply.
func (u Unit) Partial() bool {
	return u.ReplyIndex < 0
}

// EvidenceKeys returns the "sessionID:messageIndex" keys this unit covers.
// Gold evidence pointing at either the question or the reply message
// resolves to the same unit.
func (u Unit) EvidenceKeys() []string {
	keys := []string{EvidenceKey(u.SessionID, u.UserIndex)}
	if !u.Partial() {
		keys = append(keys, EvidenceKey(u.SessionID, u.ReplyIndex))
	}
	return keys
}

// EvidenceKey builds the canonical evidence reference for a message position.
func EvidenceKey(sessionID string, messageIndex int) string {
	return sessionID + ":" + strconv.Itoa(messageIndex)
}
