package playback

import (
	"strings"
	"time"

	"github.com/desertthunder/vibeflow/internal/spotify"
)

// State is the reconciliation state of a [View].
type State int

const (
	// StateUnknown is the initial state, and the state after sign-out.
	StateUnknown State = iota
	// StateSynced means the last poll succeeded.
	StateSynced
	// StateNoDevice means a command was rejected because no device is active. It holds until
	// the next successful poll.
	StateNoDevice
)

func (s State) String() string {
	switch s {
	case StateSynced:
		return "SYNCED"
	case StateNoDevice:
		return "NO_DEVICE"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Direction selects the skip target.
type Direction int

const (
	Next Direction = iota
	Previous
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Artist is an artist credit on a [Track].
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is the currently playing item. Values are never modified after creation.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      string   `json:"album"`
	ArtURL     string   `json:"art_url,omitempty"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
}

// ArtistNames joins the artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// PrimaryArtist returns the first credited artist.
func (t Track) PrimaryArtist() (Artist, bool) {
	if len(t.Artists) == 0 {
		return Artist{}, false
	}
	return t.Artists[0], true
}

func trackFrom(item *spotify.Track) *Track {
	artists := make([]Artist, 0, len(item.Artists))
	for _, a := range item.Artists {
		artists = append(artists, Artist{ID: a.ID, Name: a.Name})
	}
	return &Track{
		ID:         item.ID,
		Name:       item.Name,
		Artists:    artists,
		Album:      item.Album.Name,
		ArtURL:     item.CoverURL(),
		DurationMS: item.DurationMS,
		URI:        item.URI,
	}
}

// View is a snapshot of the reconciled playback state.
//
// PositionMS never exceeds DurationMS when DurationMS > 0.
type View struct {
	State        State     `json:"state"`
	Track        *Track    `json:"track"`
	IsPlaying    bool      `json:"is_playing"`
	PositionMS   int       `json:"position_ms"`
	DurationMS   int       `json:"duration_ms"`
	Volume       int       `json:"volume"`
	Seeking      bool      `json:"seeking"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Progress returns the position as a fraction of the duration, in [0, 1].
func (v View) Progress() float64 {
	if v.DurationMS <= 0 {
		return 0
	}
	return float64(v.PositionMS) / float64(v.DurationMS)
}

// SeekPhase is the phase of a user seek.
type SeekPhase int

const (
	// SeekIdle means polls may overwrite the position.
	SeekIdle SeekPhase = iota
	// SeekDragging means the user is choosing a position; only the local view moves.
	SeekDragging
	// SeekCommitting means the final position was sent and the reply is pending.
	SeekCommitting
)

func (p SeekPhase) String() string {
	switch p {
	case SeekDragging:
		return "dragging"
	case SeekCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// SeekIntent freezes the displayed position against polls while it is not idle.
type SeekIntent struct {
	Phase    SeekPhase
	TargetMS int
}

// Active reports whether polls must leave the position alone.
func (s SeekIntent) Active() bool {
	return s.Phase != SeekIdle
}
