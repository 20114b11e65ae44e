package httpapi

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/metrics"
)

// NewRouter wires every route. CORS and request ids wrap the whole router so
// preflight requests never reach route matching.
func NewRouter(h *Handler, cfg *config.Config, issuer *common.TokenIssuer) http.Handler {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(metrics.Middleware)

	api := router.PathPrefix("/api").Subrouter()

	// Health check
	api.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// End-user routes; a bearer token, when present, pins the userId
	auth := common.AuthMiddleware(issuer)
	api.Handle("/chat", auth(http.HandlerFunc(h.Chat))).Methods("POST")
	api.Handle("/messages/{conversationId}", auth(http.HandlerFunc(h.Messages))).Methods("GET")
	api.Handle("/conversations/{userId}", auth(http.HandlerFunc(h.UserConversations))).Methods("GET")
	api.Handle("/conversations/{conversationId}", auth(http.HandlerFunc(h.DeleteConversation))).Methods("DELETE")
	api.Handle("/unread-moderator-messages/{userId}", auth(http.HandlerFunc(h.UnreadModeratorMessages))).Methods("GET")

	// Moderator routes
	moderator := api.PathPrefix("/moderator").Subrouter()
	moderator.Use(common.ModeratorKeyMiddleware(cfg.Moderation.KeyHash))
	moderator.HandleFunc("/conversations", h.ModeratorConversations).Methods("GET")
	moderator.HandleFunc("/message", h.ModeratorMessage).Methods("POST")
	moderator.HandleFunc("/mark-read/{conversationId}", h.MarkRead).Methods("PUT")
	moderator.HandleFunc("/priority/{conversationId}", h.SetPriority).Methods("PUT")
	moderator.HandleFunc("/stats", h.Stats).Methods("GET")
	moderator.HandleFunc("/assign", h.Assign).Methods("POST")
	moderator.HandleFunc("/auto-assign/{conversationId}", h.AutoAssign).Methods("POST")
	moderator.HandleFunc("/roster", h.Roster).Methods("GET")
	moderator.HandleFunc("/transcripts/{fileId}", h.Transcript).Methods("GET")
	// registered last so the fixed paths above win
	moderator.HandleFunc("/{moderatorId}/conversations", h.AssignedConversations).Methods("GET")

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", common.ModeratorKeyHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
	return c.Handler(requestIDMiddleware(router))
}
