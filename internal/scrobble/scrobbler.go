package scrobble

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
)

const (
	// MinDuration is the shortest track Last.fm accepts.
	MinDuration = 30 * time.Second
	// MaxThreshold caps the play time needed before a scrobble.
	MaxThreshold = 4 * time.Minute
)

// API is the Last.fm surface the scrobbler uses.
type API interface {
	UpdateNowPlaying(t Track) error
	Scrobble(t Track) error
}

// Marker flags the stored play of a track as scrobbled.
type Marker interface {
	MarkLatestScrobbled(ctx context.Context, trackID string) error
}

// Scrobbler turns reconciler views into Last.fm calls. It is not safe for concurrent use;
// [Scrobbler.Run] owns it.
type Scrobbler struct {
	api    API
	marker Marker
	logger *log.Logger
	now    func() time.Time

	trackID   string
	track     Track
	scrobbled bool
}

// New creates a scrobbler. marker may be nil.
func New(api API, marker Marker, logger *log.Logger) *Scrobbler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scrobbler{api: api, marker: marker, logger: logger.WithPrefix("lastfm"), now: time.Now}
}

// Threshold is the play time after which a track of length d is scrobbled.
func Threshold(d time.Duration) time.Duration {
	return min(d/2, MaxThreshold)
}

// Run consumes views until ctx is cancelled or the subscription ends.
func (s *Scrobbler) Run(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case v := <-sub.Views:
			s.Observe(ctx, v)
		}
	}
}

// Observe handles one view.
func (s *Scrobbler) Observe(ctx context.Context, v playback.View) {
	if v.State != playback.StateSynced || v.Track == nil || v.Track.ID == "" {
		return
	}

	if v.Track.ID != s.trackID {
		s.start(v)
	}
	if s.scrobbled || !v.IsPlaying {
		return
	}

	duration := time.Duration(v.DurationMS) * time.Millisecond
	if duration < MinDuration {
		return
	}
	if time.Duration(v.PositionMS)*time.Millisecond < Threshold(duration) {
		return
	}

	s.scrobbled = true
	if err := s.api.Scrobble(s.track); err != nil {
		s.logger.Warn("scrobble failed", "track", s.track.Track, "error", err)
		return
	}
	s.logger.Info("scrobbled", "track", s.track.Track, "artist", s.track.Artist)

	if s.marker != nil {
		if err := s.marker.MarkLatestScrobbled(ctx, s.trackID); err != nil {
			s.logger.Debug("could not mark play", "track", s.trackID, "error", err)
		}
	}
}

func (s *Scrobbler) start(v playback.View) {
	t := v.Track
	artist := t.ArtistNames()
	if a, ok := t.PrimaryArtist(); ok {
		artist = a.Name
	}

	s.trackID = t.ID
	s.scrobbled = false
	s.track = Track{
		Artist:    artist,
		Track:     t.Name,
		Album:     t.Album,
		Duration:  time.Duration(t.DurationMS) * time.Millisecond,
		StartedAt: s.now().Add(-time.Duration(v.PositionMS) * time.Millisecond),
	}

	if err := s.api.UpdateNowPlaying(s.track); err != nil {
		s.logger.Debug("now playing update failed", "track", t.Name, "error", err)
	}
}
