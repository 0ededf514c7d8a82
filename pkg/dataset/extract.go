package dataset

import (
	"fmt"
	"strings"
)

// responderRoles are roles that answer rather than initiate. A turn pair
// always opens with a message outside this set.
var responderRoles = map[string]bool{
	"assistant": true,
	"system":    true,
	"model":     true,
}

func isResponderRole(role string) bool {
	return responderRoles[strings.ToLower(role)]
}

// ExtractTurns converts a conversation's sessions into ordered units, one
// per adjacent (initiator, responder) message pair. Within each session,
// leading responder messages are skipped; an initiator message followed by
// a message in a different role closes a pair; an initiator message with no
// reply (end of session, or another message in the same role next) becomes
// a partial unit when its content is non-empty.
//
// Returns ErrMalformedConversation when no unit at all can be formed.
func ExtractTurns(conv Conversation) ([]Unit, error) {
	var units []Unit

	for _, session := range conv.Sessions {
		sessionID := session.ID
		if sessionID == "" {
			sessionID = "unknown"
		}

		i := 0
		for i < len(session.Messages) {
			current := session.Messages[i]
			userRole := current.Role
			if userRole == "" {
				userRole = "user"
			}

			if isResponderRole(userRole) {
				i++
				continue
			}

			userIndex := i
			userContent := current.Content

			replyContent := ""
			replyRole := ""
			replyIndex := -1

			if i+1 < len(session.Messages) {
				next := session.Messages[i+1]
				nextRole := next.Role
				if nextRole == "" {
					nextRole = "assistant"
				}

				if nextRole != userRole {
					replyContent = next.Content
					if replyContent != "" {
						replyRole = nextRole
						replyIndex = i + 1
					}
					i += 2
				} else {
					// Same role again, the current message stands alone.
					i++
				}
			} else {
				i++
			}

			if userContent == "" {
				continue
			}

			content := "User: " + userContent
			if replyContent != "" {
				content += "\nAssistant: " + replyContent
			}

			units = append(units, Unit{
				ConversationID: conv.ID,
				TurnIndex:      len(units),
				Content:        content,
				SessionID:      sessionID,
				Timestamp:      session.Datetime,
				UserIndex:      userIndex,
				ReplyIndex:     replyIndex,
				UserRole:       userRole,
				ReplyRole:      replyRole,
			})
		}
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conv.ID, ErrMalformedConversation)
	}

	return units, nil
}
