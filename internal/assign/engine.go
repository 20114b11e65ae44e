// Package assign decides which moderator owns a conversation.
package assign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
	"supportrelay/internal/metrics"
)

const (
	AssignedByAuto     = "auto-assign"
	AssignedByManual   = "manual"
	AssignedByTakeover = "moderator-takeover"
)

type Outcome string

const (
	OutcomeAssigned Outcome = "assigned"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result reports what AutoAssign did; Err is set only for OutcomeFailed.
type Result struct {
	Outcome     Outcome
	ModeratorID string
	Err         error
}

var ErrEmptyRoster = errors.New("moderator roster is empty")

// Engine assigns conversations round robin over a fixed roster.
type Engine struct {
	conversations common.ConversationStore
	messages      common.MessageStore
	roster        []string
	events        common.Subject
	now           func() time.Time

	// serialises every assignment write so AutoAssign's read-latest-then-write
	// never interleaves with another assignment
	mu sync.Mutex
}

func NewEngine(conversations common.ConversationStore, messages common.MessageStore, roster []string, events common.Subject) *Engine {
	return &Engine{
		conversations: conversations,
		messages:      messages,
		roster:        append([]string(nil), roster...),
		events:        events,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Roster returns a copy of the moderator ids in rotation order
func (e *Engine) Roster() []string {
	return append([]string(nil), e.roster...)
}

// next picks the moderator after the one who received the latest assignment.
func (e *Engine) next(latest *common.Conversation) string {
	if latest == nil {
		return e.roster[0]
	}
	for i, id := range e.roster {
		if id == latest.AssignedModerator {
			return e.roster[(i+1)%len(e.roster)]
		}
	}
	return e.roster[0]
}

func (e *Engine) AutoAssign(ctx context.Context, conversationID string) Result {
	if len(e.roster) == 0 {
		return e.failed(ErrEmptyRoster)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conv, err := e.conversations.Get(ctx, conversationID)
	if err != nil {
		return e.failed(err)
	}
	if conv.IsAssigned() {
		metrics.ObserveAssignment(string(OutcomeSkipped), AssignedByAuto)
		return Result{Outcome: OutcomeSkipped, ModeratorID: conv.AssignedModerator}
	}

	latest, err := e.conversations.LatestAssignment(ctx)
	if err != nil {
		return e.failed(err)
	}
	moderatorID := e.next(latest)

	if err := e.set(ctx, conv, moderatorID, AssignedByAuto); err != nil {
		return e.failed(err)
	}
	metrics.ObserveAssignment(string(OutcomeAssigned), AssignedByAuto)
	return Result{Outcome: OutcomeAssigned, ModeratorID: moderatorID}
}

func (e *Engine) failed(err error) Result {
	metrics.ObserveAssignment(string(OutcomeFailed), AssignedByAuto)
	return Result{Outcome: OutcomeFailed, Err: err}
}

// Assign sets an explicit owner and leaves a system row in the thread.
// The moderator id is not checked against the roster.
func (e *Engine) Assign(ctx context.Context, conversationID, moderatorID, assignedBy string) error {
	conversationID = strings.TrimSpace(conversationID)
	moderatorID = strings.TrimSpace(moderatorID)
	if conversationID == "" || moderatorID == "" {
		return common.NewValidationError("conversationId and moderatorId are required")
	}
	if strings.TrimSpace(assignedBy) == "" {
		assignedBy = AssignedByManual
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conv, err := e.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := e.set(ctx, conv, moderatorID, assignedBy); err != nil {
		return err
	}
	metrics.ObserveAssignment(string(OutcomeAssigned), assignedBy)

	audit := &common.ChatMessage{
		UserID:         conv.UserID,
		Role:           common.RoleSystem,
		Message:        fmt.Sprintf("Conversation assigned to %s by %s", moderatorID, assignedBy),
		ConversationID: conversationID,
		Timestamp:      e.now(),
	}
	if _, err := e.messages.Append(ctx, audit); err != nil {
		return err
	}
	return nil
}

// Takeover hands the conversation to moderatorID unless it already owns it.
func (e *Engine) Takeover(ctx context.Context, conversationID, moderatorID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conv, err := e.conversations.Get(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if conv.AssignedModerator == moderatorID {
		return false, nil
	}
	if err := e.set(ctx, conv, moderatorID, AssignedByTakeover); err != nil {
		return false, err
	}
	metrics.ObserveAssignment(string(OutcomeAssigned), AssignedByTakeover)
	return true, nil
}

func (e *Engine) set(ctx context.Context, conv *common.Conversation, moderatorID, assignedBy string) error {
	now := e.now()
	err := e.conversations.SetAssignment(ctx, conv.ID, common.Assignment{
		ModeratorID: moderatorID,
		AssignedBy:  assignedBy,
		AssignedAt:  now,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"conversation_id": conv.ID,
		"moderator_id":    moderatorID,
		"assigned_by":     assignedBy,
		"previous":        conv.AssignedModerator,
	}).Info("conversation assigned")

	if e.events != nil {
		e.events.NotifyAsync(common.Event{
			Type:           common.EventConversationAssigned,
			ConversationID: conv.ID,
			UserID:         conv.UserID,
			ModeratorID:    moderatorID,
			Actor:          assignedBy,
			OccurredAt:     now,
			Metadata:       common.EventMetadata{"previous_moderator": conv.AssignedModerator},
		})
	}
	return nil
}
