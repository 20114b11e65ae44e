package common

import (
	"strings"
)

const maxMessageLength = 10000

// ValidateMessage enforces the invariants a row needs before it is written
func ValidateMessage(msg *ChatMessage) error {
	if msg == nil {
		return NewValidationError("message is required")
	}
	if !msg.Role.IsValid() {
		return NewValidationError("role must be one of user, ai, moderator, system")
	}
	if strings.TrimSpace(msg.Message) == "" {
		return NewValidationError("Message is required.")
	}
	if len(msg.Message) > maxMessageLength {
		return NewValidationError("message is too long")
	}
	if strings.TrimSpace(msg.ConversationID) == "" {
		return NewValidationError("conversationId is required")
	}
	return nil
}

// ApplyMessageDefaults fills userId before validation
func ApplyMessageDefaults(msg *ChatMessage) {
	if strings.TrimSpace(msg.UserID) == "" {
		msg.UserID = AnonymousUser
	}
}

func ValidateConversationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("conversationId is required")
	}
	return nil
}
