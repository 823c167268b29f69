package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/vibeflow/internal/formatter"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/mattn/go-runewidth"
)

// framePadding is the horizontal space taken by the frame border and padding.
const framePadding = 6

// View renders the current screen.
func (m *Model) View() string {
	if m.screen == PlaylistView {
		return m.playlistsView()
	}
	return m.playerView()
}

func (m *Model) playerView() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("vibeflow"))
	b.WriteString("\n")

	switch {
	case m.view.State == playback.StateNoDevice:
		b.WriteString(styles.warn.Render(noDeviceStatus))
		b.WriteString("\n")
	case m.view.Track == nil:
		b.WriteString(styles.artist.Render("Nothing playing"))
		b.WriteString("\n")
	default:
		m.writeTrack(&b)
	}

	b.WriteString("\n")
	b.WriteString(m.volumeLine())
	b.WriteString("\n")

	if m.status != "" && m.view.State != playback.StateNoDevice {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(m.status))
		b.WriteString("\n")
	} else if m.err != nil && m.status == "" {
		b.WriteString("\n")
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return styles.frame.Render(b.String())
}

func (m *Model) writeTrack(b *strings.Builder) {
	t := m.view.Track
	icon := "⏸"
	if m.view.IsPlaying {
		icon = "▶"
	}

	line := t.ArtistNames()
	if t.Album != "" {
		line += " • " + t.Album
	}
	fmt.Fprintf(b, "%s %s\n", icon, styles.track.Render(m.fit(t.Name, 2)))
	b.WriteString(styles.artist.Render(m.fit(line, 0)))
	b.WriteString("\n\n")

	label := fmt.Sprintf("%s / %s", formatter.FormatTime(m.view.PositionMS), formatter.FormatTime(m.view.DurationMS))
	if m.seeking {
		label = styles.warn.Render(label + " (seeking)")
	}
	fmt.Fprintf(b, "%s %s\n", m.bar.ViewAs(m.view.Progress()), label)

	if fact := m.rotation.Current(); fact != "" {
		b.WriteString("\n")
		b.WriteString(styles.fact.Render(fact))
		b.WriteString("\n")
	}
}

// fit truncates s to the terminal width less reserved columns. Wide runes count double.
func (m *Model) fit(s string, reserved int) string {
	if m.width == 0 {
		return s
	}
	return runewidth.Truncate(s, max(m.width-framePadding-reserved, 10), "...")
}

func (m *Model) volumeLine() string {
	const width = 10
	filled := m.view.Volume * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("Volume %s %3d%%", bar, m.view.Volume)
}

func (m *Model) playlistsView() string {
	if m.playlistList.Items() == nil {
		return styles.frame.Render("Loading playlists...")
	}
	return m.playlistList.View() + "\n" + styles.help.Render("enter: play • esc: back • /: filter")
}
