package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [spotify.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist spotify.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount())
	if i.playlist.Owner.DisplayName != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Owner.DisplayName)
	}
	return desc
}

func playlistItems(playlists []spotify.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}
