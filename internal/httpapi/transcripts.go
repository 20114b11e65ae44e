package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"supportrelay/internal/common"
	"supportrelay/internal/observability"
)

// Transcript streams an archived conversation: GET /api/moderator/transcripts/{fileId}
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]
	if h.transcripts == nil {
		failureResponse(w, r, common.NewNotFoundError("transcript", fileID), "")
		return
	}

	stream, err := h.transcripts.Open(r.Context(), fileID)
	if err != nil {
		failureResponse(w, r, err, "Failed to open transcript.")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileID+`.json"`)

	// Stream file directly to response
	if _, err := io.Copy(w, stream); err != nil {
		observability.Logger(r.Context()).WithError(err).Warn("error streaming transcript")
	}
}
