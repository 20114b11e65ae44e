package common

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks supportrelay/internal/common Completer,TranscriptArchive

import (
	"context" // provides context for cancellation, deletion, update anything
	"io"
	"time"
)

// MessageStore is the append-mostly chat log
type MessageStore interface {
	Append(ctx context.Context, msg *ChatMessage) (string, error)
	FindByConversation(ctx context.Context, conversationID, userID string) ([]*ChatMessage, error)
	FindOne(ctx context.Context, filter MessageFilter) (*ChatMessage, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	Count(ctx context.Context, filter MessageFilter) (int64, error)
	BulkUpdate(ctx context.Context, filter MessageFilter, patch MessagePatch) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID, userID string) (int64, error)
	DistinctConversationIDs(ctx context.Context, filter MessageFilter) ([]string, error)
}

// ConversationStore owns the per-conversation record and the read-time projection
type ConversationStore interface {
	Ensure(ctx context.Context, conversationID, userID string, now time.Time) (bool, error)
	Get(ctx context.Context, conversationID string) (*Conversation, error)
	SetPriority(ctx context.Context, conversationID string, priority Priority) error
	SetAssignment(ctx context.Context, conversationID string, a Assignment) error
	LatestAssignment(ctx context.Context) (*Conversation, error)
	Delete(ctx context.Context, conversationID string) error
	Count(ctx context.Context) (int64, error)
	PriorityStats(ctx context.Context) ([]PriorityCount, error)
	Summarize(ctx context.Context, q SummaryQuery) (*SummaryPage, error)
}

// Completer is the opaque AI provider: one prompt in, one reply out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TranscriptArchive keeps a copy of a conversation before it is deleted
type TranscriptArchive interface {
	Archive(ctx context.Context, conversationID string, content io.Reader) (string, error)
}

// TranscriptReader opens an archived transcript by the id Archive returned
type TranscriptReader interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type Observer interface {
	Update(event Event) error
	Name() string
}

type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Notify(event Event)
	NotifyAsync(event Event)
}
