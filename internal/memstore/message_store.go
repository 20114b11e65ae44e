package memstore

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"supportrelay/internal/common"
)

type messageStore struct {
	db *DB
}

var _ common.MessageStore = (*messageStore)(nil)

func (s *messageStore) Append(ctx context.Context, msg *common.ChatMessage) (string, error) {
	if msg == nil {
		return "", common.NewValidationError("message is required")
	}
	common.ApplyMessageDefaults(msg)
	if err := common.ValidateMessage(msg); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", common.NewStoreError("append message", err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.ID = primitive.NewObjectID()

	s.db.mu.Lock()
	s.db.messages = append(s.db.messages, copyMessage(msg))
	s.db.mu.Unlock()
	return msg.ID.Hex(), nil
}

func (s *messageStore) FindByConversation(ctx context.Context, conversationID, userID string) ([]*common.ChatMessage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows := s.db.sortedLocked(common.MessageFilter{ConversationID: conversationID, UserID: userID})
	out := make([]*common.ChatMessage, len(rows))
	for i, m := range rows {
		out[i] = copyMessage(m)
	}
	return out, nil
}

func (s *messageStore) FindOne(ctx context.Context, filter common.MessageFilter) (*common.ChatMessage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, m := range s.db.messages {
		if matches(m, filter) {
			return copyMessage(m), nil
		}
	}
	return nil, common.NewNotFoundError("message", filter.ConversationID)
}

func (s *messageStore) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	return s.Count(ctx, common.MessageFilter{ConversationID: conversationID})
}

func (s *messageStore) Count(ctx context.Context, filter common.MessageFilter) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var n int64
	for _, m := range s.db.messages {
		if matches(m, filter) {
			n++
		}
	}
	return n, nil
}

// BulkUpdate reports rows actually changed, like a document store's modified count
func (s *messageStore) BulkUpdate(ctx context.Context, filter common.MessageFilter, patch common.MessagePatch) (int64, error) {
	if patch.IsRead == nil {
		return 0, nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for _, m := range s.db.messages {
		if matches(m, filter) && m.IsRead != *patch.IsRead {
			m.IsRead = *patch.IsRead
			n++
		}
	}
	return n, nil
}

func (s *messageStore) DeleteByConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return 0, err
	}
	filter := common.MessageFilter{ConversationID: conversationID, UserID: userID}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	kept := s.db.messages[:0]
	var deleted int64
	for _, m := range s.db.messages {
		if matches(m, filter) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	// clear the tail so removed rows can be collected
	for i := len(kept); i < len(s.db.messages); i++ {
		s.db.messages[i] = nil
	}
	s.db.messages = kept
	return deleted, nil
}

func (s *messageStore) DistinctConversationIDs(ctx context.Context, filter common.MessageFilter) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, m := range s.db.messages {
		if matches(m, filter) && !seen[m.ConversationID] {
			seen[m.ConversationID] = true
			ids = append(ids, m.ConversationID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
