package common

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnonymousUser      = "anonymous"
	AnonymousModerator = "anonymous-moderator"
)

// ChatMessage is one row of the chat log
type ChatMessage struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID         string             `json:"userId" bson:"userId"`
	Role           Role               `json:"role" bson:"role"`
	Message        string             `json:"message" bson:"message"`
	Timestamp      time.Time          `json:"timestamp" bson:"timestamp"`
	ConversationID string             `json:"conversationId" bson:"conversationId"`
	ModeratorID    string             `json:"moderatorId,omitempty" bson:"moderatorId,omitempty"`
	IsRead         bool               `json:"isRead" bson:"isRead"`
}

// Conversation holds the per-conversation attributes that used to be copied onto every message.
type Conversation struct {
	ID                string     `json:"_id" bson:"_id"`
	UserID            string     `json:"userId" bson:"userId"`
	Priority          Priority   `json:"priority" bson:"priority"`
	AssignedModerator string     `json:"assignedModerator,omitempty" bson:"assignedModerator,omitempty"`
	AssignedAt        *time.Time `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`
	AssignedBy        string     `json:"assignedBy,omitempty" bson:"assignedBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`

	// AssignmentSeq orders assignments that share an AssignedAt
	AssignmentSeq int64 `json:"-" bson:"assignmentSeq,omitempty"`
}

// IsAssigned reports whether a moderator currently owns the conversation
func (c *Conversation) IsAssigned() bool {
	return c != nil && c.AssignedModerator != ""
}

// Assignment is written onto a Conversation as a single document update
type Assignment struct {
	ModeratorID string
	AssignedBy  string
	AssignedAt  time.Time
}

// MessageFilter selects chat rows. Zero values are ignored.
type MessageFilter struct {
	ConversationID string
	UserID         string
	Role           Role
	Roles          []Role
	IsRead         *bool
	Since          time.Time
	Search         string
}

// MessagePatch is the only mutation message rows support after insert
type MessagePatch struct {
	IsRead *bool
}

// SummaryQuery drives the conversation projection
type SummaryQuery struct {
	// applied to message rows before grouping
	UserID string
	Search string

	// applied to the conversation record after grouping
	Priority          Priority
	AssignedModerator string

	Viewer  Viewer
	Page    int
	Limit   int
	SortAsc bool
}

// ConversationSummary is one grouped conversation
type ConversationSummary struct {
	ConversationID       string     `json:"_id" bson:"_id"`
	UserID               string     `json:"userId" bson:"userId"`
	LastMessage          string     `json:"lastMessage" bson:"lastMessage"`
	LastTimestamp        time.Time  `json:"lastTimestamp" bson:"lastTimestamp"`
	MessageCount         int64      `json:"messageCount" bson:"messageCount"`
	UnreadCount          int64      `json:"unreadCount" bson:"unreadCount"`
	HasModeratorMessages int64      `json:"hasModeratorMessages" bson:"hasModeratorMessages"`
	Priority             Priority   `json:"priority" bson:"priority"`
	AssignedModerator    string     `json:"assignedModerator,omitempty" bson:"assignedModerator,omitempty"`
	AssignedAt           *time.Time `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`
	AssignedBy           string     `json:"assignedBy,omitempty" bson:"assignedBy,omitempty"`
}

type SummaryPage struct {
	Items []*ConversationSummary
	Total int64
}

// PriorityCount matches the {_id, count} shape of a priority group
type PriorityCount struct {
	Priority Priority `json:"_id" bson:"_id"`
	Count    int64    `json:"count" bson:"count"`
}

// Pagination is returned alongside paged summaries
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination computes the page count for total items split by limit
func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

func BoolPtr(b bool) *bool {
	return &b
}
