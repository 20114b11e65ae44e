package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"supportrelay/internal/assign"
	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/memstore"
	"supportrelay/internal/storetest"
)

type MockAssigner struct {
	mock.Mock
}

func (m *MockAssigner) AutoAssign(ctx context.Context, conversationID string) assign.Result {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(assign.Result)
}

func (m *MockAssigner) Assign(ctx context.Context, conversationID, moderatorID, assignedBy string) error {
	args := m.Called(ctx, conversationID, moderatorID, assignedBy)
	return args.Error(0)
}

func (m *MockAssigner) Takeover(ctx context.Context, conversationID, moderatorID string) (bool, error) {
	args := m.Called(ctx, conversationID, moderatorID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssigner) Roster() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type fixture struct {
	svc           *Service
	messages      common.MessageStore
	conversations common.ConversationStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	messages, conversations := memstore.NewStores()
	engine := assign.NewEngine(conversations, messages, config.DefaultRoster, nil)
	return &fixture{
		svc:           NewService(messages, conversations, engine, nil),
		messages:      messages,
		conversations: conversations,
	}
}

func (f *fixture) seed(t *testing.T, id, userID string, at time.Time, roles ...common.Role) {
	t.Helper()
	storetest.EnsureSeed(t, f.conversations, id, userID)
	for i, role := range roles {
		storetest.Seed(t, f.messages, id, userID, role, fmt.Sprintf("%s %d", role, i), at.Add(time.Duration(i)*time.Second))
	}
}

func TestQueueQuery_Normalisation(t *testing.T) {
	tests := []struct {
		name    string
		in      QueueQuery
		page    int
		limit   int
		viewer  common.Viewer
		prio    common.Priority
		wantErr bool
	}{
		{name: "defaults", in: QueueQuery{}, page: 1, limit: 20, viewer: common.ViewerModerator},
		{name: "limit capped", in: QueueQuery{Page: 2, Limit: 500}, page: 2, limit: 100, viewer: common.ViewerModerator},
		{name: "viewer switch", in: QueueQuery{Viewer: "USER"}, page: 1, limit: 20, viewer: common.ViewerUser},
		{name: "priority parsed", in: QueueQuery{Priority: "High"}, page: 1, limit: 20, viewer: common.ViewerModerator, prio: common.PriorityHigh},
		{name: "bad priority", in: QueueQuery{Priority: "urgent"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq, err := tt.in.toSummaryQuery()
			if tt.wantErr {
				assert.True(t, common.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, sq.Page)
			assert.Equal(t, tt.limit, sq.Limit)
			assert.Equal(t, tt.viewer, sq.Viewer)
			assert.Equal(t, tt.prio, sq.Priority)
		})
	}
}

func TestQueue_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 45; i++ {
		f.seed(t, fmt.Sprintf("conv_%02d", i), "u1", base.Add(time.Duration(i)*time.Second), common.RoleUser)
	}

	var sizes []int
	for page := 1; page <= 3; page++ {
		res, err := f.svc.Queue(ctx, QueueQuery{Page: page, Limit: 20})
		require.NoError(t, err)
		sizes = append(sizes, len(res.Conversations))
		assert.Equal(t, common.Pagination{Page: page, Limit: 20, Total: 45, Pages: 3}, res.Pagination)
	}
	assert.Equal(t, []int{20, 20, 5}, sizes)
}

func TestModeratorQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seed(t, "c1", "u1", now, common.RoleUser)
	f.seed(t, "c2", "u2", now, common.RoleUser)
	require.NoError(t, f.svc.Assign(ctx, AssignInput{ConversationID: "c2", ModeratorID: "moderator_2"}))

	res, err := f.svc.ModeratorQueue(ctx, "moderator_2", QueueQuery{})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "c2", res.Conversations[0].ConversationID)
	assert.Equal(t, "manual", res.Conversations[0].AssignedBy)

	_, err = f.svc.ModeratorQueue(ctx, " ", QueueQuery{})
	assert.True(t, common.IsValidation(err))
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("takes over and appends moderator row", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "u1", time.Now().UTC(), common.RoleUser, common.RoleAI)
		require.NoError(t, f.svc.Assign(ctx, AssignInput{ConversationID: "c1", ModeratorID: "moderator_1"}))

		res, err := f.svc.SendMessage(ctx, SendInput{ConversationID: "c1", ModeratorID: "moderator_3", Message: "  I can help  "})
		require.NoError(t, err)
		assert.Equal(t, "moderator_3", res.AssignedModerator)
		assert.Equal(t, "I can help", res.Message.Message)
		assert.Equal(t, "u1", res.Message.UserID)
		assert.Equal(t, common.RoleModerator, res.Message.Role)
		assert.False(t, res.Message.IsRead)
		assert.NotEmpty(t, res.Message.ID.Hex())

		conv, err := f.conversations.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "moderator_3", conv.AssignedModerator)
		assert.Equal(t, assign.AssignedByTakeover, conv.AssignedBy)
	})

	t.Run("anonymous moderator", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "u1", time.Now().UTC(), common.RoleUser)

		res, err := f.svc.SendMessage(ctx, SendInput{ConversationID: "c1", Message: "hello"})
		require.NoError(t, err)
		assert.Equal(t, common.AnonymousModerator, res.AssignedModerator)
		assert.Equal(t, common.AnonymousModerator, res.Message.ModeratorID)
	})

	t.Run("legacy rows without record", func(t *testing.T) {
		f := newFixture(t)
		storetest.Seed(t, f.messages, "legacy", "u9", common.RoleUser, "old", time.Now().UTC())

		res, err := f.svc.SendMessage(ctx, SendInput{ConversationID: "legacy", ModeratorID: "m", Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "u9", res.Message.UserID)

		conv, err := f.conversations.Get(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, "m", conv.AssignedModerator)
	})

	t.Run("validation and not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SendMessage(ctx, SendInput{ConversationID: "c1", Message: "  "})
		assert.True(t, common.IsValidation(err))
		_, err = f.svc.SendMessage(ctx, SendInput{Message: "hi"})
		assert.True(t, common.IsValidation(err))
		_, err = f.svc.SendMessage(ctx, SendInput{ConversationID: "nope", Message: "hi"})
		assert.True(t, common.IsNotFound(err))
	})
}

func TestMarkRead_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "c1", "u1", time.Now().UTC(), common.RoleUser, common.RoleModerator, common.RoleModerator, common.RoleAI)

	require.NoError(t, f.svc.MarkRead(ctx, "c1"))
	require.NoError(t, f.svc.MarkRead(ctx, "c1"))

	for _, role := range []common.Role{common.RoleUser, common.RoleModerator} {
		unread, err := f.messages.Count(ctx, common.MessageFilter{ConversationID: "c1", Role: role, IsRead: common.BoolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), unread, role)
	}

	assert.True(t, common.IsValidation(f.svc.MarkRead(ctx, "")))
}

func TestSetPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "c1", "u1", time.Now().UTC(), common.RoleUser)

	require.NoError(t, f.svc.SetPriority(ctx, "c1", "high"))
	conv, err := f.conversations.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, common.PriorityHigh, conv.Priority)

	assert.True(t, common.IsValidation(f.svc.SetPriority(ctx, "c1", "urgent")))
	assert.True(t, common.IsValidation(f.svc.SetPriority(ctx, "c1", "")))
	assert.True(t, common.IsNotFound(f.svc.SetPriority(ctx, "nope", "low")))
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seed(t, "recent", "u1", now.Add(-time.Hour), common.RoleUser)
	f.seed(t, "old", "u1", now.Add(-72*time.Hour), common.RoleUser)
	f.seed(t, "urgent", "u2", now.Add(-2*time.Hour), common.RoleUser)
	require.NoError(t, f.svc.SetPriority(ctx, "urgent", "high"))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalConversations)
	assert.Equal(t, int64(2), stats.ActiveToday)
	assert.ElementsMatch(t, []common.PriorityCount{
		{Priority: common.PriorityHigh, Count: 1},
		{Priority: common.PriorityMedium, Count: 2},
	}, stats.PriorityStats)
}

func TestAutoAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned then skipped", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "u1", time.Now().UTC(), common.RoleUser)

		res, err := f.svc.AutoAssign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, assign.OutcomeAssigned, res.Outcome)
		assert.Equal(t, "moderator_1", res.ModeratorID)

		res, err = f.svc.AutoAssign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, assign.OutcomeSkipped, res.Outcome)
		assert.Equal(t, "moderator_1", res.ModeratorID)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AutoAssign(ctx, "nope")
		assert.True(t, common.IsNotFound(err))
	})

	t.Run("engine failure surfaces", func(t *testing.T) {
		assigner := &MockAssigner{}
		boom := errors.New("boom")
		assigner.On("AutoAssign", mock.Anything, "c1").Return(assign.Result{Outcome: assign.OutcomeFailed, Err: boom})
		svc := NewService(nil, nil, assigner, nil)

		_, err := svc.AutoAssign(ctx, "c1")
		assert.ErrorIs(t, err, boom)
		assigner.AssertExpectations(t)
	})
}

func TestRoster(t *testing.T) {
	assigner := &MockAssigner{}
	assigner.On("Roster").Return([]string{"a", "b"})
	svc := NewService(nil, nil, assigner, nil)

	assert.Equal(t, []string{"a", "b"}, svc.Roster())
}
