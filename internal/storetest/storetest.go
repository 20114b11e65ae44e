// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrelay/internal/common"
)

// Factory returns empty stores for one subtest
type Factory func(t *testing.T) (common.MessageStore, common.ConversationStore)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises both stores against the behaviour the services depend on
func Run(t *testing.T, newStores Factory) {
	t.Run("append defaults and validation", func(t *testing.T) {
		messages, _ := newStores(t)
		ctx := context.Background()

		msg := &common.ChatMessage{Role: common.RoleUser, Message: "hi", ConversationID: "c1"}
		id, err := messages.Append(ctx, msg)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, common.AnonymousUser, msg.UserID)
		assert.False(t, msg.Timestamp.IsZero())

		_, err = messages.Append(ctx, &common.ChatMessage{Role: "bot", Message: "x", ConversationID: "c1"})
		assert.True(t, common.IsValidation(err))
		_, err = messages.Append(ctx, &common.ChatMessage{Role: common.RoleUser, Message: "   ", ConversationID: "c1"})
		assert.True(t, common.IsValidation(err))

		n, err := messages.CountByConversation(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("find by conversation is ordered and scoped", func(t *testing.T) {
		messages, _ := newStores(t)
		ctx := context.Background()

		Seed(t, messages, "c1", "u1", common.RoleUser, "second", base.Add(2*time.Minute))
		Seed(t, messages, "c1", "u1", common.RoleAI, "first", base.Add(time.Minute))
		Seed(t, messages, "c1", "u2", common.RoleUser, "other user", base.Add(3*time.Minute))
		Seed(t, messages, "c2", "u1", common.RoleUser, "elsewhere", base)

		all, err := messages.FindByConversation(ctx, "c1", "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "first", all[0].Message)
		assert.Equal(t, "second", all[1].Message)

		scoped, err := messages.FindByConversation(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Len(t, scoped, 2)

		none, err := messages.FindByConversation(ctx, "missing", "")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)

		_, err = messages.FindOne(ctx, common.MessageFilter{ConversationID: "missing"})
		assert.True(t, common.IsNotFound(err))
	})

	t.Run("bulk update flips read flag idempotently", func(t *testing.T) {
		messages, _ := newStores(t)
		ctx := context.Background()

		Seed(t, messages, "c1", "u1", common.RoleUser, "help", base)
		Seed(t, messages, "c1", "u1", common.RoleModerator, "on it", base.Add(time.Minute))
		Seed(t, messages, "c1", "u1", common.RoleModerator, "done", base.Add(2*time.Minute))

		filter := common.MessageFilter{ConversationID: "c1", Role: common.RoleModerator}
		n, err := messages.BulkUpdate(ctx, filter, common.MessagePatch{IsRead: common.BoolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = messages.BulkUpdate(ctx, filter, common.MessagePatch{IsRead: common.BoolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		unread, err := messages.Count(ctx, common.MessageFilter{ConversationID: "c1", IsRead: common.BoolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)
	})

	t.Run("delete removes only that conversation", func(t *testing.T) {
		messages, _ := newStores(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Seed(t, messages, "c1", "u1", common.RoleUser, "m", base.Add(time.Duration(i)*time.Minute))
		}
		Seed(t, messages, "c2", "u1", common.RoleUser, "keep", base)

		n, err := messages.DeleteByConversation(ctx, "c1", "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		left, err := messages.CountByConversation(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), left)
	})

	t.Run("distinct conversation ids", func(t *testing.T) {
		messages, _ := newStores(t)
		ctx := context.Background()

		Seed(t, messages, "b", "u1", common.RoleModerator, "x", base)
		Seed(t, messages, "a", "u1", common.RoleModerator, "y", base)
		Seed(t, messages, "a", "u1", common.RoleModerator, "z", base)
		Seed(t, messages, "c", "u2", common.RoleModerator, "w", base)

		ids, err := messages.DistinctConversationIDs(ctx, common.MessageFilter{UserID: "u1", Role: common.RoleModerator})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("ensure creates exactly once", func(t *testing.T) {
		_, conversations := newStores(t)
		ctx := context.Background()

		created, err := conversations.Ensure(ctx, "c1", "u1", base)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = conversations.Ensure(ctx, "c1", "someone-else", base.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, created)

		conv, err := conversations.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "u1", conv.UserID)
		assert.Equal(t, common.PriorityMedium, conv.Priority)
		assert.False(t, conv.IsAssigned())

		_, err = conversations.Get(ctx, "nope")
		assert.True(t, common.IsNotFound(err))
	})

	t.Run("priority and assignment", func(t *testing.T) {
		_, conversations := newStores(t)
		ctx := context.Background()

		latest, err := conversations.LatestAssignment(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		for _, id := range []string{"c1", "c2", "c3"} {
			_, err := conversations.Ensure(ctx, id, "u1", base)
			require.NoError(t, err)
		}

		require.NoError(t, conversations.SetPriority(ctx, "c1", common.PriorityHigh))
		require.NoError(t, conversations.SetPriority(ctx, "c2", common.PriorityHigh))
		assert.True(t, common.IsNotFound(conversations.SetPriority(ctx, "nope", common.PriorityLow)))

		require.NoError(t, conversations.SetAssignment(ctx, "c2", common.Assignment{ModeratorID: "moderator_3", AssignedBy: "manual", AssignedAt: base.Add(time.Minute)}))
		require.NoError(t, conversations.SetAssignment(ctx, "c1", common.Assignment{ModeratorID: "moderator_1", AssignedBy: "auto-assign", AssignedAt: base}))
		assert.True(t, common.IsNotFound(conversations.SetAssignment(ctx, "nope", common.Assignment{ModeratorID: "m", AssignedAt: base})))

		latest, err = conversations.LatestAssignment(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "c2", latest.ID)
		assert.Equal(t, "moderator_3", latest.AssignedModerator)

		stats, err := conversations.PriorityStats(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []common.PriorityCount{
			{Priority: common.PriorityHigh, Count: 2},
			{Priority: common.PriorityMedium, Count: 1},
		}, stats)

		total, err := conversations.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		require.NoError(t, conversations.Delete(ctx, "c3"))
		total, err = conversations.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("latest assignment follows write order on equal timestamps", func(t *testing.T) {
		_, conversations := newStores(t)
		ctx := context.Background()

		for _, id := range []string{"c_a", "c_b", "c_c"} {
			_, err := conversations.Ensure(ctx, id, "u1", base)
			require.NoError(t, err)
		}

		for _, step := range []struct{ conversation, moderator string }{
			{"c_b", "A"},
			{"c_a", "B"},
			{"c_c", "C"},
		} {
			require.NoError(t, conversations.SetAssignment(ctx, step.conversation, common.Assignment{
				ModeratorID: step.moderator,
				AssignedBy:  "auto-assign",
				AssignedAt:  base,
			}))

			latest, err := conversations.LatestAssignment(ctx)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, step.conversation, latest.ID)
			assert.Equal(t, step.moderator, latest.AssignedModerator)
		}
	})

	t.Run("summarize counts", func(t *testing.T) {
		messages, conversations := newStores(t)
		ctx := context.Background()

		EnsureSeed(t, conversations, "c1", "u1")
		Seed(t, messages, "c1", "u1", common.RoleUser, "hello", base)
		Seed(t, messages, "c1", "u1", common.RoleAI, "hi there", base.Add(time.Minute))
		Seed(t, messages, "c1", "u1", common.RoleModerator, "a human", base.Add(2*time.Minute))
		Seed(t, messages, "c1", "u1", common.RoleModerator, "still here", base.Add(3*time.Minute))
		Seed(t, messages, "c1", "u1", common.RoleUser, "thanks", base.Add(4*time.Minute))
		require.NoError(t, conversations.SetPriority(ctx, "c1", common.PriorityHigh))
		require.NoError(t, conversations.SetAssignment(ctx, "c1", common.Assignment{ModeratorID: "moderator_2", AssignedBy: "manual", AssignedAt: base}))

		page, err := conversations.Summarize(ctx, common.SummaryQuery{Viewer: common.ViewerModerator})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		s := page.Items[0]
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, "c1", s.ConversationID)
		assert.Equal(t, "u1", s.UserID)
		assert.Equal(t, "thanks", s.LastMessage)
		assert.True(t, base.Add(4*time.Minute).Equal(s.LastTimestamp))
		assert.Equal(t, int64(5), s.MessageCount)
		assert.Equal(t, int64(2), s.UnreadCount)
		assert.Equal(t, int64(2), s.HasModeratorMessages)
		assert.Equal(t, common.PriorityHigh, s.Priority)
		assert.Equal(t, "moderator_2", s.AssignedModerator)
		assert.Equal(t, "manual", s.AssignedBy)
		require.NotNil(t, s.AssignedAt)

		userView, err := conversations.Summarize(ctx, common.SummaryQuery{UserID: "u1", Viewer: common.ViewerUser})
		require.NoError(t, err)
		require.Len(t, userView.Items, 1)
		assert.Equal(t, int64(2), userView.Items[0].UnreadCount)
	})

	t.Run("summarize defaults priority without a record", func(t *testing.T) {
		messages, conversations := newStores(t)
		ctx := context.Background()

		Seed(t, messages, "orphan", "u1", common.RoleUser, "legacy row", base)

		page, err := conversations.Summarize(ctx, common.SummaryQuery{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, common.PriorityMedium, page.Items[0].Priority)
		assert.Empty(t, page.Items[0].AssignedModerator)
		assert.Nil(t, page.Items[0].AssignedAt)
	})

	t.Run("summarize search is literal and case insensitive", func(t *testing.T) {
		messages, conversations := newStores(t)
		ctx := context.Background()

		bodies := []string{"I want a REFUND", "where is my order", "Refund please", "hello", "price (USD)?"}
		for i, body := range bodies {
			id := fmt.Sprintf("conv_%d", i)
			EnsureSeed(t, conversations, id, "u1")
			Seed(t, messages, id, "u1", common.RoleUser, body, base.Add(time.Duration(i)*time.Minute))
		}

		page, err := conversations.Summarize(ctx, common.SummaryQuery{Search: "refund"})
		require.NoError(t, err)
		ids := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			ids = append(ids, item.ConversationID)
		}
		assert.ElementsMatch(t, []string{"conv_0", "conv_2"}, ids)
		assert.Equal(t, int64(2), page.Total)

		literal, err := conversations.Summarize(ctx, common.SummaryQuery{Search: "(usd)"})
		require.NoError(t, err)
		require.Len(t, literal.Items, 1)
		assert.Equal(t, "conv_4", literal.Items[0].ConversationID)

		dot, err := conversations.Summarize(ctx, common.SummaryQuery{Search: "."})
		require.NoError(t, err)
		assert.Empty(t, dot.Items)

		byID, err := conversations.Summarize(ctx, common.SummaryQuery{Search: "CONV_3"})
		require.NoError(t, err)
		require.Len(t, byID.Items, 1)
		assert.Equal(t, "conv_3", byID.Items[0].ConversationID)
	})

	t.Run("summarize filters and pages", func(t *testing.T) {
		messages, conversations := newStores(t)
		ctx := context.Background()

		for i := 0; i < 45; i++ {
			id := fmt.Sprintf("conv_%02d", i)
			EnsureSeed(t, conversations, id, "u1")
			Seed(t, messages, id, "u1", common.RoleUser, "msg", base.Add(time.Duration(i)*time.Minute))
			if i%3 == 0 {
				require.NoError(t, conversations.SetPriority(ctx, id, common.PriorityLow))
			}
			if i < 4 {
				require.NoError(t, conversations.SetAssignment(ctx, id, common.Assignment{ModeratorID: "moderator_1", AssignedBy: "manual", AssignedAt: base}))
			}
		}

		seen := make(map[string]bool)
		sizes := []int{}
		for page := 1; page <= 3; page++ {
			res, err := conversations.Summarize(ctx, common.SummaryQuery{Page: page, Limit: 20})
			require.NoError(t, err)
			assert.Equal(t, int64(45), res.Total)
			sizes = append(sizes, len(res.Items))
			for _, item := range res.Items {
				assert.False(t, seen[item.ConversationID], "duplicate %s", item.ConversationID)
				seen[item.ConversationID] = true
			}
			if page == 1 {
				assert.Equal(t, "conv_44", res.Items[0].ConversationID)
			}
		}
		assert.Equal(t, []int{20, 20, 5}, sizes)
		assert.Equal(t, int64(3), common.NewPagination(1, 20, 45).Pages)

		low, err := conversations.Summarize(ctx, common.SummaryQuery{Priority: common.PriorityLow, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(15), low.Total)

		mine, err := conversations.Summarize(ctx, common.SummaryQuery{AssignedModerator: "moderator_1", SortAsc: true})
		require.NoError(t, err)
		require.Len(t, mine.Items, 4)
		assert.Equal(t, "conv_00", mine.Items[0].ConversationID)
	})
}

// Seed appends one row with a fixed timestamp
func Seed(t *testing.T, store common.MessageStore, conversationID, userID string, role common.Role, text string, at time.Time) {
	t.Helper()
	_, err := store.Append(context.Background(), &common.ChatMessage{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Message:        text,
		Timestamp:      at,
	})
	require.NoError(t, err)
}

func EnsureSeed(t *testing.T, store common.ConversationStore, conversationID, userID string) {
	t.Helper()
	_, err := store.Ensure(context.Background(), conversationID, userID, base)
	require.NoError(t, err)
}
