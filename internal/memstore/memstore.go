// Package memstore is an in-process implementation of the message and
// conversation stores, used for STORAGE_BACKEND=memory and in tests.
package memstore

import (
	"sort"
	"strings"
	"sync"

	"supportrelay/internal/common"
)

// DB is the shared state behind both stores. The projection reads messages
// and conversations together, so one lock guards both.
type DB struct {
	mu            sync.RWMutex
	messages      []*common.ChatMessage
	conversations map[string]*common.Conversation
	assignmentSeq int64
}

func New() *DB {
	return &DB{conversations: make(map[string]*common.Conversation)}
}

func (db *DB) MessageStore() common.MessageStore {
	return &messageStore{db: db}
}

func (db *DB) ConversationStore() common.ConversationStore {
	return &conversationStore{db: db}
}

// NewStores is a shorthand for tests and wiring
func NewStores() (common.MessageStore, common.ConversationStore) {
	db := New()
	return db.MessageStore(), db.ConversationStore()
}

func matches(msg *common.ChatMessage, f common.MessageFilter) bool {
	if f.ConversationID != "" && msg.ConversationID != f.ConversationID {
		return false
	}
	if f.UserID != "" && msg.UserID != f.UserID {
		return false
	}
	if len(f.Roles) > 0 {
		found := false
		for _, r := range f.Roles {
			if msg.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if f.Role != "" && msg.Role != f.Role {
		return false
	}
	if f.IsRead != nil && msg.IsRead != *f.IsRead {
		return false
	}
	if !f.Since.IsZero() && msg.Timestamp.Before(f.Since) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		if !strings.Contains(strings.ToLower(msg.Message), s) &&
			!strings.Contains(strings.ToLower(msg.ConversationID), s) {
			return false
		}
	}
	return true
}

// sortedLocked returns matching rows ordered by timestamp then insertion.
// Caller holds db.mu.
func (db *DB) sortedLocked(f common.MessageFilter) []*common.ChatMessage {
	out := make([]*common.ChatMessage, 0)
	for _, m := range db.messages {
		if matches(m, f) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func copyMessage(m *common.ChatMessage) *common.ChatMessage {
	c := *m
	return &c
}

func copyConversation(c *common.Conversation) *common.Conversation {
	out := *c
	if c.AssignedAt != nil {
		at := *c.AssignedAt
		out.AssignedAt = &at
	}
	return &out
}
