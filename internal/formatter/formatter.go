// package formatter renders playback, profile, playlist and history data as plain text, Markdown and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vibeflow/internal/insights"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/repositories"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/dustin/go-humanize"
)

// FormatTime renders milliseconds as m:ss. Negative values render as 0:00.
func FormatTime(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// NowPlaying renders a one-shot view of the player.
func NowPlaying(v playback.View) string {
	var buf strings.Builder

	switch {
	case v.State == playback.StateNoDevice:
		buf.WriteString("No active device. Open Spotify on a device and try again.\n")
		return buf.String()
	case v.Track == nil:
		buf.WriteString("Nothing playing\n")
		return buf.String()
	}

	status := "Paused"
	if v.IsPlaying {
		status = "Playing"
	}

	fmt.Fprintf(&buf, "%s: %s\n", status, v.Track.Name)
	fmt.Fprintf(&buf, "Artist: %s\n", v.Track.ArtistNames())
	if v.Track.Album != "" {
		fmt.Fprintf(&buf, "Album: %s\n", v.Track.Album)
	}
	fmt.Fprintf(&buf, "%s / %s  (volume %d%%)\n", FormatTime(v.PositionMS), FormatTime(v.DurationMS), v.Volume)
	return buf.String()
}

// ProfileText renders the profile page.
func ProfileText(p *insights.Profile) string {
	var buf strings.Builder

	if p.User != nil {
		fmt.Fprintf(&buf, "%s", p.User.DisplayName)
		if p.User.Product != "" {
			fmt.Fprintf(&buf, " (%s)", p.User.Product)
		}
		fmt.Fprintf(&buf, "\nFollowers: %s\n\n", humanize.Comma(int64(p.User.Followers.Total)))
	}

	if s := p.Stats; s != nil {
		buf.WriteString("Listening stats\n")
		fmt.Fprintf(&buf, "  Estimated listening time: %dh %dm\n", s.EstimatedHours, s.EstimatedMinutes)
		fmt.Fprintf(&buf, "  Top tracks: %d\n", s.TopTracksCount)
		fmt.Fprintf(&buf, "  Average track length: %d min\n\n", s.AvgTrackMinutes)
	}

	buf.WriteString("Top artists\n")
	for i, a := range p.TopArtists {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, a.Name)
	}

	buf.WriteString("\nTop tracks\n")
	for i, t := range p.TopTracks {
		fmt.Fprintf(&buf, "  %d. %s - %s [%s]\n", i+1, t.ArtistNames(), t.Name, FormatTime(t.DurationMS))
	}

	buf.WriteString("\nRecently played\n")
	for _, h := range p.RecentlyPlayed {
		fmt.Fprintf(&buf, "  %s - %s\n", h.Track.ArtistNames(), h.Track.Name)
	}
	return buf.String()
}

// PlaylistsText renders playlists as a numbered list.
func PlaylistsText(playlists []spotify.Playlist) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Playlists: %d\n\n", len(playlists))
	for i, p := range playlists {
		fmt.Fprintf(&buf, "%d. %s (%d tracks) [%s]\n", i+1, p.Name, p.TrackCount(), p.ID)
	}
	return buf.String()
}

// PlaylistsToMarkdown renders playlists as a Markdown document.
func PlaylistsToMarkdown(playlists []spotify.Playlist) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Playlists\n\n")
	fmt.Fprintf(&buf, "**Total**: %d\n\n", len(playlists))
	for _, p := range playlists {
		owner := ""
		if p.Owner.DisplayName != "" {
			owner = fmt.Sprintf(" by %s", p.Owner.DisplayName)
		}
		fmt.Fprintf(&buf, "- %s%s (%d tracks)\n", p.Name, owner, p.TrackCount())
	}
	return buf.Bytes()
}

// PlaylistsToCSV converts playlists to CSV format with columns: ID, Name, Owner, Tracks, Public
func PlaylistsToCSV(playlists []spotify.Playlist) ([]byte, error) {
	records := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		records = append(records, []string{
			p.ID, p.Name, p.Owner.DisplayName, strconv.Itoa(p.TrackCount()), strconv.FormatBool(p.Public),
		})
	}
	return writeCSV([]string{"ID", "Name", "Owner", "Tracks", "Public"}, records)
}

// HistoryText renders local play history with relative times.
func HistoryText(plays []*repositories.Play, now time.Time) string {
	if len(plays) == 0 {
		return "No plays recorded yet\n"
	}

	var buf strings.Builder
	for _, p := range plays {
		mark := " "
		if p.Scrobbled {
			mark = "*"
		}
		fmt.Fprintf(&buf, "%s %s - %s (%s)\n", mark, p.Artist, p.TrackName, humanize.RelTime(p.PlayedAt, now, "ago", "from now"))
	}
	return buf.String()
}

// HistoryToCSV converts plays to CSV format with columns: Played At, Track ID, Title, Artist, Album, Duration, Scrobbled
func HistoryToCSV(plays []*repositories.Play) ([]byte, error) {
	records := make([][]string, 0, len(plays))
	for _, p := range plays {
		records = append(records, []string{
			p.PlayedAt.UTC().Format(time.RFC3339),
			p.TrackID,
			p.TrackName,
			p.Artist,
			p.Album,
			FormatTime(p.DurationMS),
			strconv.FormatBool(p.Scrobbled),
		})
	}
	return writeCSV([]string{"Played At", "Track ID", "Title", "Artist", "Album", "Duration", "Scrobbled"}, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes data to path, or to stdout when path is empty or "-".
func WriteFile(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
