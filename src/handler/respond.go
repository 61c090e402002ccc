package handler

import (
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/auth"
	"tradingcore/src/traderr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeDomainError maps domain errors onto HTTP statuses. Anything the
// error package cannot classify is an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	status := traderr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		http.Error(w, "Internal Server Error", status)
		return
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  string(traderr.CodeOf(err)),
	})
}

func userFromRequest(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
