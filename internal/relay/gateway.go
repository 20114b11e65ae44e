// Package relay runs one user turn: persist, ask the provider, persist the reply.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/assign"
	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/metrics"
	"supportrelay/internal/observability"
)

// AutoAssigner is the part of assign.Engine the relay needs
type AutoAssigner interface {
	AutoAssign(ctx context.Context, conversationID string) assign.Result
}

type TurnInput struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type TurnResult struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`

	Created    bool           `json:"-"`
	Fallback   bool           `json:"-"`
	Assignment *assign.Result `json:"-"`
}

type Gateway struct {
	messages      common.MessageStore
	conversations common.ConversationStore
	completer     common.Completer
	assigner      AutoAssigner
	events        common.Subject

	providerName  string
	timeout       time.Duration
	fallbackReply string
	now           func() time.Time
}

func NewGateway(
	messages common.MessageStore,
	conversations common.ConversationStore,
	completer common.Completer,
	assigner AutoAssigner,
	events common.Subject,
	cfg *config.Config,
) *Gateway {
	fallback := cfg.Provider.FallbackReply
	if strings.TrimSpace(fallback) == "" {
		fallback = config.DefaultFallbackReply
	}
	return &Gateway{
		messages:      messages,
		conversations: conversations,
		completer:     completer,
		assigner:      assigner,
		events:        events,
		providerName:  cfg.Provider.Kind,
		timeout:       cfg.ProviderTimeout(),
		fallbackReply: fallback,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HandleTurn stores the user's message, relays it, and stores the reply.
// Provider failures never surface; the caller gets the fallback text instead.
func (g *Gateway) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, common.NewValidationError("Message is required.")
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = common.AnonymousUser
	}
	now := g.now()
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = fmt.Sprintf("conv_%s_%d", userID, now.UnixMilli())
	}

	logger := observability.Logger(ctx).WithFields(log.Fields{
		"conversation_id": conversationID,
		"user_id":         userID,
	})

	created, err := g.conversations.Ensure(ctx, conversationID, userID, now)
	if err != nil {
		return nil, err
	}

	userMsg := &common.ChatMessage{
		UserID:         userID,
		Role:           common.RoleUser,
		Message:        text,
		ConversationID: conversationID,
		Timestamp:      now,
	}
	if _, err := g.messages.Append(ctx, userMsg); err != nil {
		if created {
			// leave no empty conversation behind
			if delErr := g.conversations.Delete(context.WithoutCancel(ctx), conversationID); delErr != nil {
				logger.WithError(delErr).Warn("could not remove conversation after failed append")
			}
		}
		return nil, err
	}

	result := &TurnResult{ConversationID: conversationID, Created: created}

	if created {
		g.publish(common.Event{Type: common.EventConversationCreated, ConversationID: conversationID, UserID: userID, OccurredAt: now})
		res := g.assigner.AutoAssign(ctx, conversationID)
		result.Assignment = &res
		switch res.Outcome {
		case assign.OutcomeFailed:
			logger.WithError(res.Err).Warn("auto-assign failed")
		default:
			logger.WithField("moderator_id", res.ModeratorID).Debugf("auto-assign %s", res.Outcome)
		}
	}

	reply, err := g.complete(ctx, text)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err == nil {
			err = common.NewProviderError("complete", fmt.Errorf("empty reply"))
		}
		logger.WithError(err).Warn("provider failed, using fallback reply")
		metrics.ObserveTurn(metrics.OutcomeFallback)
		g.publish(common.Event{
			Type:           common.EventProviderFallback,
			ConversationID: conversationID,
			UserID:         userID,
			OccurredAt:     g.now(),
			Metadata:       common.EventMetadata{"error": err.Error()},
		})
		reply = g.fallbackReply
		result.Fallback = true
	} else {
		metrics.ObserveTurn(metrics.OutcomeAI)
	}
	result.Reply = reply

	// the client may be gone by now; the reply row is written regardless
	aiMsg := &common.ChatMessage{
		UserID:         userID,
		Role:           common.RoleAI,
		Message:        reply,
		ConversationID: conversationID,
		Timestamp:      g.now(),
	}
	if _, err := g.messages.Append(context.WithoutCancel(ctx), aiMsg); err != nil {
		logger.WithError(err).Error("failed to persist ai reply")
	}

	return result, nil
}

func (g *Gateway) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := time.Now()
	reply, err := g.completer.Complete(callCtx, prompt)
	metrics.ObserveProviderLatency(g.providerName, time.Since(start))
	return reply, err
}

func (g *Gateway) publish(e common.Event) {
	if g.events != nil {
		g.events.NotifyAsync(e)
	}
}
