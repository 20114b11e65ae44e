// Package chat serves the end-user side: threads, conversation lists, deletes.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
	"supportrelay/internal/config"
)

// ChatService defines the business logic interface
type ChatService interface {
	Thread(ctx context.Context, conversationID, userID string) ([]*common.ChatMessage, error)
	UserConversations(ctx context.Context, userID string) ([]*common.ConversationSummary, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) (*DeleteResult, error)
	UnreadModeratorMessages(ctx context.Context, userID string) (*UnreadSummary, error)
}

// DeleteResult reports removed rows and, when archiving is on, the transcript file id
type DeleteResult struct {
	DeletedCount int64
	TranscriptID string
}

type UnreadSummary struct {
	UnreadCount         int64    `json:"unreadCount"`
	UnreadConversations []string `json:"unreadConversations"`
}

// concrete service struct
type chatService struct {
	messages      common.MessageStore
	conversations common.ConversationStore
	archive       common.TranscriptArchive
}

// NewChatService wires the stores; archive may be nil to skip archiving on delete.
func NewChatService(messages common.MessageStore, conversations common.ConversationStore, archive common.TranscriptArchive) ChatService {
	return &chatService{messages: messages, conversations: conversations, archive: archive}
}

// ArchiveFor returns archive only when ARCHIVE_ON_DELETE is set
func ArchiveFor(cfg *config.Config, archive common.TranscriptArchive) common.TranscriptArchive {
	if !cfg.Storage.ArchiveOnDelete {
		return nil
	}
	return archive
}

// Thread returns the rows in order, then marks moderator rows as seen by the user.
// The returned rows show the read state from before this call.
func (s *chatService) Thread(ctx context.Context, conversationID, userID string) ([]*common.ChatMessage, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messages.FindByConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	filter := common.MessageFilter{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           common.RoleModerator,
		IsRead:         common.BoolPtr(false),
	}
	if _, err := s.messages.BulkUpdate(ctx, filter, common.MessagePatch{IsRead: common.BoolPtr(true)}); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *chatService) UserConversations(ctx context.Context, userID string) ([]*common.ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.NewValidationError("userId is required")
	}
	page, err := s.conversations.Summarize(ctx, common.SummaryQuery{
		UserID: userID,
		Viewer: common.ViewerUser,
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

type transcript struct {
	ConversationID string                `json:"conversationId"`
	UserID         string                `json:"userId,omitempty"`
	ArchivedAt     time.Time             `json:"archivedAt"`
	Messages       []*common.ChatMessage `json:"messages"`
}

// DeleteConversation removes the rows (optionally only one user's) and the
// conversation record once no rows remain.
func (s *chatService) DeleteConversation(ctx context.Context, conversationID, userID string) (*DeleteResult, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}

	res := &DeleteResult{}
	if s.archive != nil {
		rows, err := s.messages.FindByConversation(ctx, conversationID, userID)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, common.NewNotFoundError("conversation", conversationID)
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(transcript{
			ConversationID: conversationID,
			UserID:         userID,
			ArchivedAt:     time.Now().UTC(),
			Messages:       rows,
		}); err != nil {
			return nil, err
		}
		fileID, err := s.archive.Archive(ctx, conversationID, &buf)
		if err != nil {
			return nil, err
		}
		res.TranscriptID = fileID
		log.WithFields(log.Fields{"conversation_id": conversationID, "file_id": fileID}).Info("transcript archived")
	}

	deleted, err := s.messages.DeleteByConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, common.NewNotFoundError("conversation", conversationID)
	}
	res.DeletedCount = deleted

	remaining, err := s.messages.CountByConversation(ctx, conversationID)
	if err != nil {
		return res, err
	}
	if remaining == 0 {
		if err := s.conversations.Delete(ctx, conversationID); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *chatService) UnreadModeratorMessages(ctx context.Context, userID string) (*UnreadSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.NewValidationError("userId is required")
	}
	filter := common.MessageFilter{
		UserID: userID,
		Role:   common.RoleModerator,
		IsRead: common.BoolPtr(false),
	}

	count, err := s.messages.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids, err := s.messages.DistinctConversationIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &UnreadSummary{UnreadCount: count, UnreadConversations: ids}, nil
}
