package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
	"supportrelay/internal/observability"
)

const maxBodyBytes = 1 << 20

var errIdentityMismatch = errors.New("userId does not match the authenticated user")

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("could not encode response")
	}
}

// failureResponse maps err onto a status. Client errors echo their reason;
// server errors get the summary with the cause in details.
func failureResponse(w http.ResponseWriter, r *http.Request, err error, summary string) {
	if errors.Is(err, errIdentityMismatch) {
		respondWithJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
		return
	}

	code := common.HTTPStatus(err)
	if code < http.StatusInternalServerError {
		respondWithJSON(w, code, errorBody{Error: err.Error()})
		return
	}

	observability.Logger(r.Context()).WithError(err).Error(summary)
	respondWithJSON(w, code, errorBody{Error: summary, Details: err.Error()})
}

// decodeJSON reads a bounded request body into dst. Malformed input is a ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewValidationError("request body is required")
		}
		return common.NewValidationError("Invalid JSON: " + err.Error())
	}
	return nil
}

// resolveUser lets an authenticated identity fill in or confirm the requested userId
func resolveUser(r *http.Request, requested string) (string, error) {
	identity, ok := common.UserIDFromContext(r.Context())
	if !ok {
		return requested, nil
	}
	if requested != "" && requested != identity {
		return "", errIdentityMismatch
	}
	return identity, nil
}
