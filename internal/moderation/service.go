// Package moderation serves the moderator console: queues, replies, triage.
package moderation

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/assign"
	"supportrelay/internal/common"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	activeWindow = 24 * time.Hour
)

// Assigner is the subset of assign.Engine used here
type Assigner interface {
	AutoAssign(ctx context.Context, conversationID string) assign.Result
	Assign(ctx context.Context, conversationID, moderatorID, assignedBy string) error
	Takeover(ctx context.Context, conversationID, moderatorID string) (bool, error)
	Roster() []string
}

type QueueQuery struct {
	Page     int
	Limit    int
	Priority string
	Search   string
	Viewer   string
}

type QueuePage struct {
	Conversations []*common.ConversationSummary `json:"conversations"`
	Pagination    common.Pagination             `json:"pagination"`
}

type SendInput struct {
	ConversationID string `json:"conversationId"`
	ModeratorID    string `json:"moderatorId"`
	Message        string `json:"message"`
}

type SendResult struct {
	Message           *common.ChatMessage
	AssignedModerator string
}

type AssignInput struct {
	ConversationID string `json:"conversationId"`
	ModeratorID    string `json:"moderatorId"`
	AssignedBy     string `json:"assignedBy"`
}

type Stats struct {
	TotalConversations int64                  `json:"totalConversations"`
	ActiveToday        int64                  `json:"activeToday"`
	PriorityStats      []common.PriorityCount `json:"priorityStats"`
}

type Service struct {
	messages      common.MessageStore
	conversations common.ConversationStore
	assigner      Assigner
	events        common.Subject
	now           func() time.Time
}

func NewService(messages common.MessageStore, conversations common.ConversationStore, assigner Assigner, events common.Subject) *Service {
	return &Service{
		messages:      messages,
		conversations: conversations,
		assigner:      assigner,
		events:        events,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (q QueueQuery) toSummaryQuery() (common.SummaryQuery, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	sq := common.SummaryQuery{
		Search: strings.TrimSpace(q.Search),
		Viewer: common.ParseViewer(q.Viewer, common.ViewerModerator),
		Page:   page,
		Limit:  limit,
	}
	if strings.TrimSpace(q.Priority) != "" {
		p, err := common.ParsePriority(q.Priority)
		if err != nil {
			return sq, err
		}
		sq.Priority = p
	}
	return sq, nil
}

func (s *Service) queue(ctx context.Context, sq common.SummaryQuery) (*QueuePage, error) {
	page, err := s.conversations.Summarize(ctx, sq)
	if err != nil {
		return nil, err
	}
	return &QueuePage{
		Conversations: page.Items,
		Pagination:    common.NewPagination(sq.Page, sq.Limit, page.Total),
	}, nil
}

// Queue lists every conversation, newest activity first
func (s *Service) Queue(ctx context.Context, q QueueQuery) (*QueuePage, error) {
	sq, err := q.toSummaryQuery()
	if err != nil {
		return nil, err
	}
	return s.queue(ctx, sq)
}

// ModeratorQueue lists the conversations assigned to one moderator
func (s *Service) ModeratorQueue(ctx context.Context, moderatorID string, q QueueQuery) (*QueuePage, error) {
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return nil, common.NewValidationError("moderatorId is required")
	}
	sq, err := q.toSummaryQuery()
	if err != nil {
		return nil, err
	}
	sq.AssignedModerator = moderatorID
	return s.queue(ctx, sq)
}

// SendMessage posts a moderator reply, taking the conversation over first
// when someone else owns it.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (*SendResult, error) {
	conversationID := strings.TrimSpace(in.ConversationID)
	text := strings.TrimSpace(in.Message)
	if conversationID == "" || text == "" {
		return nil, common.NewValidationError("conversationId and message are required")
	}
	moderatorID := strings.TrimSpace(in.ModeratorID)
	if moderatorID == "" {
		moderatorID = common.AnonymousModerator
	}

	existing, err := s.messages.FindOne(ctx, common.MessageFilter{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}

	// rows written before conversation records existed get one now
	if _, err := s.conversations.Ensure(ctx, conversationID, existing.UserID, s.now()); err != nil {
		return nil, err
	}
	if _, err := s.assigner.Takeover(ctx, conversationID, moderatorID); err != nil {
		return nil, err
	}

	msg := &common.ChatMessage{
		UserID:         existing.UserID,
		Role:           common.RoleModerator,
		Message:        text,
		ConversationID: conversationID,
		ModeratorID:    moderatorID,
		IsRead:         false,
		Timestamp:      s.now(),
	}
	if _, err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.NotifyAsync(common.Event{
			Type:           common.EventModeratorMessage,
			ConversationID: conversationID,
			UserID:         existing.UserID,
			ModeratorID:    moderatorID,
			Actor:          moderatorID,
			OccurredAt:     msg.Timestamp,
		})
	}
	return &SendResult{Message: msg, AssignedModerator: moderatorID}, nil
}

// MarkRead flags user and moderator rows as read. Repeating it is harmless.
func (s *Service) MarkRead(ctx context.Context, conversationID string) error {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return err
	}
	filter := common.MessageFilter{
		ConversationID: conversationID,
		Roles:          []common.Role{common.RoleUser, common.RoleModerator},
		IsRead:         common.BoolPtr(false),
	}
	n, err := s.messages.BulkUpdate(ctx, filter, common.MessagePatch{IsRead: common.BoolPtr(true)})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"conversation_id": conversationID, "updated": n}).Debug("marked read")
	return nil
}

func (s *Service) SetPriority(ctx context.Context, conversationID, priority string) error {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return err
	}
	if strings.TrimSpace(priority) == "" {
		return common.NewValidationError("Invalid priority level.")
	}
	p, err := common.ParsePriority(priority)
	if err != nil {
		return err
	}
	return s.conversations.SetPriority(ctx, conversationID, p)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.conversations.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.messages.DistinctConversationIDs(ctx, common.MessageFilter{Since: s.now().Add(-activeWindow)})
	if err != nil {
		return nil, err
	}
	priorities, err := s.conversations.PriorityStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalConversations: total,
		ActiveToday:        int64(len(active)),
		PriorityStats:      priorities,
	}, nil
}

func (s *Service) Assign(ctx context.Context, in AssignInput) error {
	return s.assigner.Assign(ctx, in.ConversationID, in.ModeratorID, in.AssignedBy)
}

// AutoAssign runs round robin for one conversation. An already assigned
// conversation reports its current moderator.
func (s *Service) AutoAssign(ctx context.Context, conversationID string) (assign.Result, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return assign.Result{}, err
	}
	res := s.assigner.AutoAssign(ctx, conversationID)
	if res.Outcome == assign.OutcomeFailed {
		return res, res.Err
	}
	return res, nil
}

func (s *Service) Roster() []string {
	return s.assigner.Roster()
}
