package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/insights"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

// Player is the playback reconciler as seen by the HTTP layer.
type Player interface {
	View() playback.View
	Seek() playback.SeekIntent
	Poll(ctx context.Context) error
	Reset()
	Toggle(ctx context.Context) error
	Skip(ctx context.Context, dir playback.Direction) error
	SetVolume(ctx context.Context, percent int) error
	PlayContext(ctx context.Context, contextURI string) error
	BeginSeek()
	UpdateSeek(positionMS int)
	CommitSeek(ctx context.Context, positionMS int) error
}

// Insights supplies artist facts and the profile page.
type Insights interface {
	ArtistFacts(ctx context.Context, artistID string) ([]string, error)
	Profile(ctx context.Context) (*insights.Profile, error)
}

// Playlists lists the user's playlists.
type Playlists interface {
	AllPlaylists(ctx context.Context) ([]spotify.Playlist, error)
}

// DashboardHandler serves the JSON API over the reconciler and the library.
type DashboardHandler struct {
	player    Player
	insights  Insights
	playlists Playlists
	logger    *log.Logger
}

func NewDashboardHandler(player Player, in Insights, playlists Playlists, logger *log.Logger) *DashboardHandler {
	return &DashboardHandler{player: player, insights: in, playlists: playlists, logger: logger}
}

// Register adds the dashboard routes to router.
func (h *DashboardHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodGet, "/api/playback", h.playback)
	router.HandleFunc(http.MethodPost, "/api/playback/toggle", h.toggle)
	router.HandleFunc(http.MethodPost, "/api/playback/next", h.skip(playback.Next))
	router.HandleFunc(http.MethodPost, "/api/playback/previous", h.skip(playback.Previous))
	router.HandleFunc(http.MethodPut, "/api/playback/volume", h.volume)
	router.HandleFunc(http.MethodPost, "/api/playback/seek/begin", h.beginSeek)
	router.HandleFunc(http.MethodPut, "/api/playback/seek", h.updateSeek)
	router.HandleFunc(http.MethodPost, "/api/playback/seek/commit", h.commitSeek)
	router.HandleFunc(http.MethodGet, "/api/artist-facts", h.artistFacts)
	router.HandleFunc(http.MethodGet, "/api/profile", h.profile)
	router.HandleFunc(http.MethodGet, "/api/playlists", h.listPlaylists)
	router.HandleFunc(http.MethodPost, "/api/playlists/{id}/play", h.playPlaylist)
}

type playbackResponse struct {
	playback.View
	SeekTargetMS *int `json:"seek_target_ms,omitempty"`
}

func (h *DashboardHandler) respondView(w http.ResponseWriter) {
	resp := playbackResponse{View: h.player.View()}
	if s := h.player.Seek(); s.Active() {
		target := s.TargetMS
		resp.SeekTargetMS = &target
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DashboardHandler) playback(w http.ResponseWriter, _ *http.Request) {
	h.respondView(w)
}

func (h *DashboardHandler) toggle(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.player.Toggle(r.Context()))
}

func (h *DashboardHandler) skip(dir playback.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.command(w, h.player.Skip(r.Context(), dir))
	}
}

type volumeRequest struct {
	Volume *int `json:"volume"`
}

func (h *DashboardHandler) volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decode(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Volume == nil {
		writeError(w, fmt.Errorf("%w: volume", shared.ErrMissingArgument))
		return
	}
	h.command(w, h.player.SetVolume(r.Context(), *req.Volume))
}

type seekRequest struct {
	PositionMS *int `json:"position_ms"`
}

func (r seekRequest) position() (int, error) {
	if r.PositionMS == nil {
		return 0, fmt.Errorf("%w: position_ms", shared.ErrMissingArgument)
	}
	if *r.PositionMS < 0 {
		return 0, fmt.Errorf("%w: position_ms must not be negative", shared.ErrInvalidArgument)
	}
	return *r.PositionMS, nil
}

func (h *DashboardHandler) beginSeek(w http.ResponseWriter, _ *http.Request) {
	h.player.BeginSeek()
	h.respondView(w)
}

func (h *DashboardHandler) updateSeek(w http.ResponseWriter, r *http.Request) {
	pos, err := decodeSeek(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.player.UpdateSeek(pos)
	h.respondView(w)
}

func (h *DashboardHandler) commitSeek(w http.ResponseWriter, r *http.Request) {
	pos, err := decodeSeek(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.command(w, h.player.CommitSeek(r.Context(), pos))
}

type factsResponse struct {
	ArtistID string   `json:"artist_id,omitempty"`
	Facts    []string `json:"facts"`
	Interval int      `json:"rotate_ms"`
}

// artistFacts serves facts for ?artist_id, or the primary artist of the playing track.
func (h *DashboardHandler) artistFacts(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("artist_id")
	if id == "" {
		if t := h.player.View().Track; t != nil {
			if a, ok := t.PrimaryArtist(); ok {
				id = a.ID
			}
		}
	}

	resp := factsResponse{ArtistID: id, Facts: []string{}, Interval: int(insights.FactInterval.Milliseconds())}
	if id != "" {
		facts, err := h.insights.ArtistFacts(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Facts = facts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DashboardHandler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.insights.Profile(r.Context())
	if err != nil {
		h.logger.Warn("profile failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *DashboardHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.AllPlaylists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if playlists == nil {
		playlists = []spotify.Playlist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": playlists, "total": len(playlists)})
}

func (h *DashboardHandler) playPlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument))
		return
	}
	h.command(w, h.player.PlayContext(r.Context(), spotify.PlaylistURI(id)))
}

// command answers a control request with the resulting view, or the mapped error.
func (h *DashboardHandler) command(w http.ResponseWriter, err error) {
	if err != nil {
		h.logger.Debug("command failed", "error", err)
		writeError(w, err)
		return
	}
	h.respondView(w)
}

func decodeSeek(r *http.Request) (int, error) {
	var req seekRequest
	if err := decode(r.Body, &req); err != nil {
		return 0, err
	}
	return req.position()
}

func decode(body io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
