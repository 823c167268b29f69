package ui

import (
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

// viewMsg carries a snapshot from the reconciler subscription.
type viewMsg playback.View

// errorEventMsg is a failure the reconciler hit on its own.
type errorEventMsg playback.ErrorEvent

// closedMsg means the reconciler stopped.
type closedMsg struct{}

// commandMsg reports the outcome of a control command.
type commandMsg struct {
	op  string
	err error
}

type factsMsg struct {
	artistID string
	facts    []string
	err      error
}

// factTickMsg rotates the displayed fact.
type factTickMsg struct{}

// seekCommitMsg fires after the seek keys go quiet. Only the newest seq commits.
type seekCommitMsg struct {
	seq int
}

type playlistsMsg struct {
	playlists []spotify.Playlist
	err       error
}
