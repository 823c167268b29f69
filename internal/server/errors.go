package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/vibeflow/internal/shared"
)

// LoginPath is where clients are sent when the session needs a fresh login.
const LoginPath = "/auth/login"

type errorBody struct {
	Error    string `json:"error"`
	LoginURL string `json:"login_url,omitempty"`
}

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case shared.IsReauthRequired(err), errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrNoActiveDevice):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrArtistNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusUnauthorized {
		body.LoginURL = LoginPath
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
