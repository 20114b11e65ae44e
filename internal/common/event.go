package common

import "time"

type EventType string

const (
	EventConversationCreated  EventType = "conversation.created"
	EventConversationAssigned EventType = "conversation.assigned"
	EventModeratorMessage     EventType = "moderator.message"
	EventProviderFallback     EventType = "provider.fallback"
)

type EventMetadata map[string]interface{}

// Event is published after a state change has been written
type Event struct {
	Type           EventType
	ConversationID string
	UserID         string
	ModeratorID    string
	Actor          string
	OccurredAt     time.Time
	Metadata       EventMetadata
}
