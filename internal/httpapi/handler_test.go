package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrelay/internal/assign"
	"supportrelay/internal/chat"
	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/memstore"
	"supportrelay/internal/moderation"
	"supportrelay/internal/relay"
	"supportrelay/internal/storetest"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

type testServer struct {
	handler       http.Handler
	completer     *stubCompleter
	messages      common.MessageStore
	conversations common.ConversationStore
}

func newTestServer(t *testing.T, configure ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{AllowedOrigins: []string{"*"}},
		Provider: config.ProviderConfig{Kind: "mock", Timeout: 2},
	}
	for _, fn := range configure {
		fn(cfg)
	}

	messages, conversations := memstore.NewStores()
	completer := &stubCompleter{reply: "Happy to help."}
	engine := assign.NewEngine(conversations, messages, config.DefaultRoster, nil)
	h := NewHandler(
		relay.NewGateway(messages, conversations, completer, engine, nil, cfg),
		chat.NewChatService(messages, conversations, nil),
		moderation.NewService(messages, conversations, engine, nil),
		nil,
	)
	issuer := common.NewTokenIssuer(cfg.Auth.JWTSecret, time.Hour)

	return &testServer{
		handler:       NewRouter(h, cfg, issuer),
		completer:     completer,
		messages:      messages,
		conversations: conversations,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *testServer) chat(t *testing.T, userID, conversationID, message string) string {
	t.Helper()
	body := fmt.Sprintf(`{"userId":%q,"conversationId":%q,"message":%q}`, userID, conversationID, message)
	rec := s.do(t, http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Reply          string `json:"reply"`
		ConversationID string `json:"conversationId"`
	}
	decode(t, rec, &res)
	return res.ConversationID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"supportrelay"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodOptions, "/api/moderator/stats", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "GET",
	)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChat(t *testing.T) {
	t.Run("reply and conversation id", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/api/chat", `{"userId":"u1","message":"hello"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res map[string]string
		decode(t, rec, &res)
		assert.Equal(t, "Happy to help.", res["reply"])
		assert.True(t, strings.HasPrefix(res["conversationId"], "conv_u1_"), res["conversationId"])
	})

	t.Run("provider failure still succeeds", func(t *testing.T) {
		s := newTestServer(t)
		s.completer.err = errors.New("connection refused")

		rec := s.do(t, http.MethodPost, "/api/chat", `{"userId":"u1","conversationId":"c1","message":"hello"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"reply":"Let me connect you with someone","conversationId":"c1"}`, rec.Body.String())

		rows, err := s.messages.FindByConversation(context.Background(), "c1", "")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, common.RoleAI, rows[1].Role)
		assert.Equal(t, "Let me connect you with someone", rows[1].Message)
	})

	t.Run("bad input", func(t *testing.T) {
		s := newTestServer(t)
		tests := []struct {
			name string
			body string
			want string
		}{
			{"malformed json", `{"message":`, "Invalid JSON"},
			{"empty body", ``, "request body is required"},
			{"blank message", `{"message":"   "}`, "Message is required."},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := s.do(t, http.MethodPost, "/api/chat", tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)

				var res errorBody
				decode(t, rec, &res)
				assert.Contains(t, res.Error, tt.want)
			})
		}
	})
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)
	conversationID := s.chat(t, "u1", "c1", "where is my parcel")

	rec := s.do(t, http.MethodPost, "/api/moderator/message", `{"conversationId":"c1","moderatorId":"moderator_2","message":"Checking now"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/unread-moderator-messages/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unreadCount":1,"unreadConversations":["c1"]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/messages/"+conversationID+"?userId=someone-else", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/unread-moderator-messages/u1", "")
	assert.JSONEq(t, `{"unreadCount":1,"unreadConversations":["c1"]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/messages/"+conversationID+"?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var thread struct {
		Messages []*common.ChatMessage `json:"messages"`
	}
	decode(t, rec, &thread)
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, common.RoleUser, thread.Messages[0].Role)
	assert.Equal(t, common.RoleAI, thread.Messages[1].Role)

	rec = s.do(t, http.MethodGet, "/api/unread-moderator-messages/u1", "")
	assert.JSONEq(t, `{"unreadCount":0,"unreadConversations":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/conversations/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Conversations []*common.ConversationSummary `json:"conversations"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "c1", list.Conversations[0].ConversationID)
	assert.Equal(t, "moderator_2", list.Conversations[0].AssignedModerator)

	rec = s.do(t, http.MethodGet, "/api/conversations/nobody", "")
	assert.JSONEq(t, `{"conversations":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/messages/unknown", "")
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestDeleteConversation(t *testing.T) {
	s := newTestServer(t)
	s.chat(t, "u1", "keep", "one")
	s.chat(t, "u1", "drop", "two")

	rec := s.do(t, http.MethodDelete, "/api/conversations/drop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Conversation deleted successfully","deletedCount":2}`, rec.Body.String())

	kept, err := s.messages.CountByConversation(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, int64(2), kept)

	rec = s.do(t, http.MethodDelete, "/api/conversations/drop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModeratorQueue(t *testing.T) {
	s := newTestServer(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("conv_%02d", i)
		text := "general question"
		if i%10 == 0 {
			text = "I want a REFUND"
		}
		storetest.EnsureSeed(t, s.conversations, id, "u1")
		storetest.Seed(t, s.messages, id, "u1", common.RoleUser, text, base.Add(time.Duration(i)*time.Second))
	}

	var page struct {
		Conversations []*common.ConversationSummary `json:"conversations"`
		Pagination    common.Pagination             `json:"pagination"`
	}

	rec := s.do(t, http.MethodGet, "/api/moderator/conversations?page=3&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Len(t, page.Conversations, 5)
	assert.Equal(t, common.Pagination{Page: 3, Limit: 10, Total: 25, Pages: 3}, page.Pagination)

	rec = s.do(t, http.MethodGet, "/api/moderator/conversations?search=refund", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Len(t, page.Conversations, 3)
	assert.Equal(t, int64(3), page.Pagination.Total)

	rec = s.do(t, http.MethodGet, "/api/moderator/conversations?priority=urgent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/moderator/conversations?page=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 20, page.Pagination.Limit)
}

func TestModeratorActions(t *testing.T) {
	s := newTestServer(t)
	s.chat(t, "u1", "c1", "my card was charged twice")

	t.Run("send takes over", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/moderator/message", `{"conversationId":"c1","moderatorId":"moderator_3","message":"On it"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res struct {
			Message           string              `json:"message"`
			Data              *common.ChatMessage `json:"data"`
			AssignedModerator string              `json:"assignedModerator"`
		}
		decode(t, rec, &res)
		assert.Equal(t, "Moderator message sent successfully", res.Message)
		assert.Equal(t, "moderator_3", res.AssignedModerator)
		assert.Equal(t, common.RoleModerator, res.Data.Role)
		assert.Equal(t, "u1", res.Data.UserID)
	})

	t.Run("send to unknown conversation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/moderator/message", `{"conversationId":"nope","message":"hi"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mark read twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := s.do(t, http.MethodPut, "/api/moderator/mark-read/c1", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"message":"Messages marked as read"}`, rec.Body.String())
		}
	})

	t.Run("priority", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/api/moderator/priority/c1", `{"priority":"urgent"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid priority level."}`, rec.Body.String())

		rec = s.do(t, http.MethodPut, "/api/moderator/priority/c1", `{"priority":"high"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Priority updated successfully"}`, rec.Body.String())

		rec = s.do(t, http.MethodPut, "/api/moderator/priority/missing", `{"priority":"low"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/moderator/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totalConversations":1,"activeToday":1,"priorityStats":[{"_id":"high","count":1}]}`, rec.Body.String())
	})

	t.Run("assign and list", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/moderator/assign", `{"conversationId":"c1","moderatorId":"moderator_4"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Conversation assigned successfully","assignedTo":"moderator_4"}`, rec.Body.String())

		rec = s.do(t, http.MethodPost, "/api/moderator/assign", `{"conversationId":"c1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/moderator/moderator_4/conversations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Conversations []*common.ConversationSummary `json:"conversations"`
			ModeratorID   string                        `json:"moderatorId"`
			Pagination    common.Pagination             `json:"pagination"`
		}
		decode(t, rec, &res)
		assert.Equal(t, "moderator_4", res.ModeratorID)
		require.Len(t, res.Conversations, 1)
		assert.Equal(t, assign.AssignedByManual, res.Conversations[0].AssignedBy)
		assert.Equal(t, int64(1), res.Pagination.Total)
	})

	t.Run("auto assign skips owned conversation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/moderator/auto-assign/c1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Conversation already assigned","assignedTo":"moderator_4","conversationId":"c1"}`, rec.Body.String())

		rec = s.do(t, http.MethodPost, "/api/moderator/auto-assign/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("roster", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/moderator/roster", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"moderators":["moderator_1","moderator_2","moderator_3","moderator_4"]}`, rec.Body.String())
	})
}

func TestAutoAssignRoundRobin(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		storetest.EnsureSeed(t, s.conversations, id, "u1")
		storetest.Seed(t, s.messages, id, "u1", common.RoleUser, "hi", time.Now().UTC())
	}

	var got []string
	for i := 0; i < 5; i++ {
		rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/moderator/auto-assign/c%d", i), "")
		require.Equal(t, http.StatusOK, rec.Code)
		var res map[string]string
		decode(t, rec, &res)
		assert.Equal(t, "Conversation auto-assigned successfully", res["message"])
		got = append(got, res["assignedTo"])
	}
	assert.Equal(t, []string{"moderator_1", "moderator_2", "moderator_3", "moderator_4", "moderator_1"}, got)
}

func TestModeratorKeyGuard(t *testing.T) {
	hash, err := common.HashModeratorKey("s3cret")
	require.NoError(t, err)
	s := newTestServer(t, func(cfg *config.Config) { cfg.Moderation.KeyHash = hash })

	rec := s.do(t, http.MethodGet, "/api/moderator/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/moderator/stats", "", common.ModeratorKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/moderator/stats", "", common.ModeratorKeyHeader, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// user routes are not behind the moderator key
	rec = s.do(t, http.MethodGet, "/api/conversations/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Auth.JWTSecret = "test-secret" })
	token, err := common.NewTokenIssuer("test-secret", time.Hour).GenerateToken("u1")
	require.NoError(t, err)
	bearer := "Bearer " + token

	t.Run("token identity fills userId", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/chat", `{"conversationId":"c1","message":"hi"}`, "Authorization", bearer)
		require.Equal(t, http.StatusOK, rec.Code)

		conv, err := s.conversations.Get(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "u1", conv.UserID)
	})

	t.Run("other user's data is refused", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/conversations/u2", "", "Authorization", bearer)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/conversations/u1", "", "Authorization", bearer)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/conversations/u1", "", "Authorization", "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("anonymous still allowed", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/conversations/u1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
