package insights

import (
	"time"

	"github.com/desertthunder/vibeflow/internal/spotify"
)

// EstimatedPlaysPerTrack is the assumed play count of each top track.
const EstimatedPlaysPerTrack = 10

// ListeningStats is a rough listening-time estimate derived from the user's top tracks.
type ListeningStats struct {
	EstimatedHours   int `json:"estimated_hours"`
	EstimatedMinutes int `json:"estimated_minutes"`
	TopTracksCount   int `json:"top_tracks_count"`
	AvgTrackMinutes  int `json:"avg_track_minutes"`
}

// ComputeListeningStats estimates total listening time as the summed duration of tracks times
// [EstimatedPlaysPerTrack]. It reports false for an empty list.
func ComputeListeningStats(tracks []spotify.Track) (ListeningStats, bool) {
	if len(tracks) == 0 {
		return ListeningStats{}, false
	}

	var total time.Duration
	for _, t := range tracks {
		total += time.Duration(t.DurationMS) * time.Millisecond
	}
	avg := total / time.Duration(len(tracks))
	estimated := total * EstimatedPlaysPerTrack

	return ListeningStats{
		EstimatedHours:   int(estimated / time.Hour),
		EstimatedMinutes: int((estimated % time.Hour) / time.Minute),
		TopTracksCount:   len(tracks),
		AvgTrackMinutes:  int(avg / time.Minute),
	}, true
}
