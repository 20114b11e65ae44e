// Package httpapi exposes the chat and moderator operations over REST.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"supportrelay/internal/assign"
	"supportrelay/internal/chat"
	"supportrelay/internal/common"
	"supportrelay/internal/moderation"
	"supportrelay/internal/relay"
)

const serviceName = "supportrelay"

type Handler struct {
	relay       *relay.Gateway
	chat        chat.ChatService
	moderation  *moderation.Service
	transcripts common.TranscriptReader
}

// NewHandler builds the route handlers; transcripts may be nil when archiving is off.
func NewHandler(
	gateway *relay.Gateway,
	chatService chat.ChatService,
	moderationService *moderation.Service,
	transcripts common.TranscriptReader,
) *Handler {
	return &Handler{
		relay:       gateway,
		chat:        chatService,
		moderation:  moderationService,
		transcripts: transcripts,
	}
}

// Chat runs one user turn. Provider trouble shows up as the fallback reply, never as an error status.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var in relay.TurnInput
	if err := decodeJSON(w, r, &in); err != nil {
		failureResponse(w, r, err, "Failed to process chat message.")
		return
	}
	userID, err := resolveUser(r, in.UserID)
	if err != nil {
		failureResponse(w, r, err, "")
		return
	}
	in.UserID = userID

	res, err := h.relay.HandleTurn(r.Context(), in)
	if err != nil {
		failureResponse(w, r, err, "Failed to process chat message.")
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		failureResponse(w, r, err, "")
		return
	}

	messages, err := h.chat.Thread(r.Context(), mux.Vars(r)["conversationId"], userID)
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch messages.")
		return
	}
	if messages == nil {
		messages = []*common.ChatMessage{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (h *Handler) UserConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUser(r, mux.Vars(r)["userId"])
	if err != nil {
		failureResponse(w, r, err, "")
		return
	}

	conversations, err := h.chat.UserConversations(r.Context(), userID)
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch conversations.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"conversations": summaries(conversations)})
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		failureResponse(w, r, err, "")
		return
	}

	res, err := h.chat.DeleteConversation(r.Context(), mux.Vars(r)["conversationId"], userID)
	if err != nil {
		failureResponse(w, r, err, "Failed to delete conversation.")
		return
	}
	body := map[string]interface{}{
		"message":      "Conversation deleted successfully",
		"deletedCount": res.DeletedCount,
	}
	if res.TranscriptID != "" {
		body["transcriptId"] = res.TranscriptID
	}
	respondWithJSON(w, http.StatusOK, body)
}

func (h *Handler) UnreadModeratorMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUser(r, mux.Vars(r)["userId"])
	if err != nil {
		failureResponse(w, r, err, "")
		return
	}

	summary, err := h.chat.UnreadModeratorMessages(r.Context(), userID)
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch unread messages.")
		return
	}
	if summary.UnreadConversations == nil {
		summary.UnreadConversations = []string{}
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) ModeratorConversations(w http.ResponseWriter, r *http.Request) {
	page, err := h.moderation.Queue(r.Context(), queueQuery(r))
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch conversations.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": summaries(page.Conversations),
		"pagination":    page.Pagination,
	})
}

func (h *Handler) AssignedConversations(w http.ResponseWriter, r *http.Request) {
	moderatorID := mux.Vars(r)["moderatorId"]
	page, err := h.moderation.ModeratorQueue(r.Context(), moderatorID, queueQuery(r))
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch moderator conversations.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": summaries(page.Conversations),
		"moderatorId":   moderatorID,
		"pagination":    page.Pagination,
	})
}

func (h *Handler) ModeratorMessage(w http.ResponseWriter, r *http.Request) {
	var in moderation.SendInput
	if err := decodeJSON(w, r, &in); err != nil {
		failureResponse(w, r, err, "")
		return
	}

	res, err := h.moderation.SendMessage(r.Context(), in)
	if err != nil {
		failureResponse(w, r, err, "Failed to send moderator message.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "Moderator message sent successfully",
		"data":              res.Message,
		"assignedModerator": res.AssignedModerator,
	})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.moderation.MarkRead(r.Context(), mux.Vars(r)["conversationId"]); err != nil {
		failureResponse(w, r, err, "Failed to mark messages as read.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}

func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priority string `json:"priority"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		failureResponse(w, r, err, "")
		return
	}

	if err := h.moderation.SetPriority(r.Context(), mux.Vars(r)["conversationId"], body.Priority); err != nil {
		failureResponse(w, r, err, "Failed to update priority.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Priority updated successfully"})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderation.Stats(r.Context())
	if err != nil {
		failureResponse(w, r, err, "Failed to fetch stats.")
		return
	}
	if stats.PriorityStats == nil {
		stats.PriorityStats = []common.PriorityCount{}
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var in moderation.AssignInput
	if err := decodeJSON(w, r, &in); err != nil {
		failureResponse(w, r, err, "")
		return
	}

	if err := h.moderation.Assign(r.Context(), in); err != nil {
		failureResponse(w, r, err, "Failed to assign conversation.")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":    "Conversation assigned successfully",
		"assignedTo": in.ModeratorID,
	})
}

func (h *Handler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]
	res, err := h.moderation.AutoAssign(r.Context(), conversationID)
	if err != nil {
		failureResponse(w, r, err, "Failed to auto-assign conversation.")
		return
	}

	msg := "Conversation auto-assigned successfully"
	if res.Outcome == assign.OutcomeSkipped {
		msg = "Conversation already assigned"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":        msg,
		"assignedTo":     res.ModeratorID,
		"conversationId": conversationID,
	})
}

func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"moderators": h.moderation.Roster()})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

// queueQuery reads page, limit, priority, search and viewer. Unparseable numbers fall back to defaults.
func queueQuery(r *http.Request) moderation.QueueQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return moderation.QueueQuery{
		Page:     page,
		Limit:    limit,
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
		Viewer:   q.Get("viewer"),
	}
}

func summaries(items []*common.ConversationSummary) []*common.ConversationSummary {
	if items == nil {
		return []*common.ConversationSummary{}
	}
	return items
}
