package repositories

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
)

// PlaySink receives recorded plays.
type PlaySink interface {
	Record(ctx context.Context, p *Play) error
}

// Recorder writes a [Play] each time the reconciler reports a different track.
type Recorder struct {
	sink   PlaySink
	logger *log.Logger
	now    func() time.Time
	last   string
}

func NewRecorder(sink PlaySink, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Recorder{sink: sink, logger: logger.WithPrefix("history"), now: time.Now}
}

// Run consumes views until ctx is cancelled or the subscription ends.
func (r *Recorder) Run(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case v := <-sub.Views:
			r.Observe(ctx, v)
		}
	}
}

// Observe records v's track if it differs from the last one recorded.
func (r *Recorder) Observe(ctx context.Context, v playback.View) {
	if v.State != playback.StateSynced || v.Track == nil || v.Track.ID == "" {
		return
	}
	if v.Track.ID == r.last {
		return
	}

	t := v.Track
	p := &Play{
		TrackID:    t.ID,
		TrackName:  t.Name,
		Artist:     t.ArtistNames(),
		Album:      t.Album,
		DurationMS: t.DurationMS,
		PlayedAt:   r.now(),
	}
	if err := r.sink.Record(ctx, p); err != nil {
		r.logger.Warn("failed to record play", "track", t.ID, "error", err)
		return
	}
	r.last = t.ID
	r.logger.Debug("recorded play", "track", t.Name, "artist", p.Artist)
}
