package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"golang.org/x/oauth2"
)

const stateCookie = "vibeflow_oauth_state"

// Sessions is the session manager as seen by the HTTP layer.
type Sessions interface {
	InitializeToken(tok *oauth2.Token) error
	Invalidate()
	Authenticated() bool
}

// AuthHandler runs the browser login for the dashboard.
type AuthHandler struct {
	config       *oauth2.Config
	sessions     Sessions
	player       Player
	logger       *log.Logger
	callbackPath string
}

func NewAuthHandler(config *oauth2.Config, sessions Sessions, player Player, callbackPath string, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		config:       config,
		sessions:     sessions,
		player:       player,
		logger:       logger,
		callbackPath: callbackPath,
	}
}

// Register adds the auth routes to router.
func (h *AuthHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodGet, LoginPath, h.login)
	router.HandleFunc(http.MethodGet, h.callbackPath, h.callback)
	router.HandleFunc(http.MethodPost, "/auth/logout", h.logout)
	router.HandleFunc(http.MethodGet, "/api/session", h.status)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, spotify.AuthCodeURL(h.config, state), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	var state string
	if c, err := r.Cookie(stateCookie); err == nil {
		state = c.Value
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	token, err := exchange(r, h.config, state)
	if err != nil {
		h.logger.Warn("login failed", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), LoginURL: LoginPath})
		return
	}

	if err := h.sessions.InitializeToken(token); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("signed in")

	if err := h.player.Poll(r.Context()); err != nil {
		h.logger.Debug("initial poll failed", "error", err)
	}
	http.Redirect(w, r, "/api/playback", http.StatusFound)
}

func (h *AuthHandler) logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Invalidate()
	h.player.Reset()
	h.logger.Info("signed out")
	w.WriteHeader(http.StatusNoContent)
}

type sessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	LoginURL      string `json:"login_url,omitempty"`
}

func (h *AuthHandler) status(w http.ResponseWriter, _ *http.Request) {
	s := sessionStatus{Authenticated: h.sessions.Authenticated()}
	if !s.Authenticated {
		s.LoginURL = LoginPath
	}
	writeJSON(w, http.StatusOK, s)
}
