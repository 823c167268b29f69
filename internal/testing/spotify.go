package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// SpotifyAPI is an in-memory stand-in for the Spotify Web API player and library endpoints.
//
// It keeps a tiny player state so control commands are reflected by the next
// currently-playing request.
type SpotifyAPI struct {
	Server *httptest.Server

	mu         sync.Mutex
	calls      []string
	noDevice   bool
	playing    bool
	positionMS int
	volume     int
	trackIndex int
	tracks     []string
}

// NewSpotifyAPI starts the fake server and closes it when the test ends.
func NewSpotifyAPI(t *testing.T) *SpotifyAPI {
	t.Helper()

	api := &SpotifyAPI{playing: true, volume: 50, tracks: []string{"track-1", "track-2", "track-3"}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/player/currently-playing", api.currentlyPlaying)
	mux.HandleFunc("PUT /me/player/play", api.control(func() { api.playing = true }))
	mux.HandleFunc("PUT /me/player/pause", api.control(func() { api.playing = false }))
	mux.HandleFunc("POST /me/player/next", api.control(func() { api.skip(1) }))
	mux.HandleFunc("POST /me/player/previous", api.control(func() { api.skip(-1) }))
	mux.HandleFunc("PUT /me/player/seek", api.seek)
	mux.HandleFunc("PUT /me/player/volume", api.setVolume)
	mux.HandleFunc("GET /me", api.me)
	mux.HandleFunc("GET /me/top/artists", api.topArtists)
	mux.HandleFunc("GET /me/top/tracks", api.topTracks)
	mux.HandleFunc("GET /me/player/recently-played", api.recentlyPlayed)
	mux.HandleFunc("GET /me/playlists", api.playlists)
	mux.HandleFunc("GET /artists/{id}", api.artist)
	mux.HandleFunc("GET /artists/{id}/top-tracks", api.artistTopTracks)

	api.Server = httptest.NewServer(api.record(mux))
	t.Cleanup(api.Server.Close)
	return api
}

// URL is the base URL to hand to the Spotify client.
func (a *SpotifyAPI) URL() string {
	return a.Server.URL
}

// SetNoDevice makes control commands answer 404 and currently-playing answer 204.
func (a *SpotifyAPI) SetNoDevice(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noDevice = v
}

// Calls returns "METHOD /path" for each request received.
func (a *SpotifyAPI) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Volume returns the last volume set.
func (a *SpotifyAPI) Volume() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

func (a *SpotifyAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.calls = append(a.calls, r.Method+" "+r.URL.Path)
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *SpotifyAPI) skip(delta int) {
	a.trackIndex = (a.trackIndex + delta + len(a.tracks)) % len(a.tracks)
	a.positionMS = 0
}

func (a *SpotifyAPI) control(apply func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.noDevice {
			writeError(w, http.StatusNotFound, "Player command failed: No active device found")
			return
		}
		apply()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *SpotifyAPI) seek(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.URL.Query().Get("position_ms"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position_ms")
		return
	}
	a.control(func() { a.positionMS = pos })(w, r)
}

func (a *SpotifyAPI) setVolume(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.URL.Query().Get("volume_percent"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid volume_percent")
		return
	}
	a.control(func() { a.volume = v })(w, r)
}

func (a *SpotifyAPI) currentlyPlaying(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.noDevice {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, map[string]any{
		"is_playing":  a.playing,
		"progress_ms": a.positionMS,
		"item":        track(a.tracks[a.trackIndex], a.trackIndex),
	})
}

func (a *SpotifyAPI) me(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"id":           "listener",
		"display_name": "Test Listener",
		"product":      "premium",
		"followers":    map[string]any{"total": 12},
	})
}

func (a *SpotifyAPI) topArtists(w http.ResponseWriter, r *http.Request) {
	n := limit(r, 5)
	items := make([]any, n)
	for i := range items {
		items[i] = artist(fmt.Sprintf("artist-%d", i+1))
	}
	writeJSON(w, map[string]any{"items": items})
}

func (a *SpotifyAPI) topTracks(w http.ResponseWriter, r *http.Request) {
	n := limit(r, 20)
	items := make([]any, n)
	for i := range items {
		items[i] = track(fmt.Sprintf("top-%d", i+1), i)
	}
	writeJSON(w, map[string]any{"items": items})
}

func (a *SpotifyAPI) recentlyPlayed(w http.ResponseWriter, r *http.Request) {
	n := limit(r, 20)
	items := make([]any, n)
	for i := range items {
		items[i] = map[string]any{"track": track(fmt.Sprintf("recent-%d", i+1), i), "played_at": "2024-05-01T12:00:00Z"}
	}
	writeJSON(w, map[string]any{"items": items})
}

func (a *SpotifyAPI) playlists(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"items": []any{
			map[string]any{"id": "pl-1", "name": "Road Trip", "owner": map[string]any{"display_name": "Test Listener"}, "tracks": map[string]any{"total": 42}},
			map[string]any{"id": "pl-2", "name": "Focus", "owner": map[string]any{"display_name": "Test Listener"}, "tracks": map[string]any{"total": 7}},
		},
		"total":  2,
		"limit":  50,
		"offset": 0,
		"next":   nil,
	})
}

func (a *SpotifyAPI) artist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, artist(r.PathValue("id")))
}

func (a *SpotifyAPI) artistTopTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"tracks": []any{track("hit-"+r.PathValue("id"), 0)}})
}

func artist(id string) map[string]any {
	return map[string]any{
		"id":         id,
		"name":       "Artist " + id,
		"genres":     []string{"indie", "rock"},
		"popularity": 65,
		"followers":  map[string]any{"total": 2_500_000},
		"uri":        "spotify:artist:" + id,
	}
}

func track(id string, i int) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "Song " + id,
		"duration_ms": 180_000 + i*1000,
		"uri":         "spotify:track:" + id,
		"artists":     []any{map[string]any{"id": "artist-1", "name": "Artist artist-1"}},
		"album":       map[string]any{"id": "album-1", "name": "Album", "images": []any{map[string]any{"url": "https://i.scdn.co/image/cover", "width": 640, "height": 640}}},
	}
}

func limit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"status": status, "message": message}})
}
