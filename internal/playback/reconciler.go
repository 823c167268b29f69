package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

const (
	DefaultPollInterval     = 5 * time.Second
	DefaultTickInterval     = time.Second
	DefaultSkipRefreshDelay = 500 * time.Millisecond
	DefaultVolume           = 75
)

// Remote is the playback service the reconciler drives. [*spotify.Client] implements it.
//
// CurrentlyPlaying returns nil when nothing is playing. Control methods return an error wrapping
// [shared.ErrNoActiveDevice] when no device is active.
type Remote interface {
	CurrentlyPlaying(ctx context.Context) (*spotify.CurrentlyPlaying, error)
	Play(ctx context.Context, contextURI string) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMS int) error
	SetVolume(ctx context.Context, percent int) error
}

// Options configures a [Reconciler]. Zero values fall back to the package defaults.
type Options struct {
	PollInterval     time.Duration
	TickInterval     time.Duration
	SkipRefreshDelay time.Duration
	// InitialVolume is shown until the first poll. Nil means [DefaultVolume].
	InitialVolume *int
	Logger           *log.Logger
	Now              func() time.Time
}

// Reconciler owns a [View] and keeps it consistent with the remote player.
//
// All methods are safe for concurrent use. Commands reach the remote in the order they were
// issued. Once stopped, a Reconciler never changes its view again.
type Reconciler struct {
	remote Remote
	opts   Options
	logger *log.Logger

	// cmdMu orders commands; it is held across the remote call.
	cmdMu sync.Mutex

	mu      sync.Mutex
	view    View
	seek    SeekIntent
	subs    []*Subscription
	stopped bool
	running bool
	polling bool
	// pollSeq numbers issued polls; applied is the newest one whose result was merged.
	pollSeq uint64
	applied uint64
	pending *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a [Reconciler] in [StateUnknown]. Call Start to begin polling.
func New(remote Remote, opts Options) *Reconciler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.SkipRefreshDelay <= 0 {
		opts.SkipRefreshDelay = DefaultSkipRefreshDelay
	}
	volume := DefaultVolume
	if opts.InitialVolume != nil {
		volume = shared.Clamp(*opts.InitialVolume, 0, 100)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		remote: remote,
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "playback"),
		view:   View{State: StateUnknown, Volume: volume},
		ctx:    ctx,
		cancel: cancel,
	}
}

// View returns the current snapshot.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Seek returns the current seek intent.
func (r *Reconciler) Seek() SeekIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seek
}

// Subscribe registers a display layer. The current view is delivered immediately.
func (r *Reconciler) Subscribe() *Subscription {
	sub := newSubscription()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		sub.close()
		return sub
	}
	r.subs = append(r.subs, sub)
	sub.sendView(r.view)
	return sub
}

// Start polls once immediately, then every PollInterval, and advances the local position every
// TickInterval while playing. Cancelling ctx stops the reconciler.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return shared.ErrStopped
	}
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	context.AfterFunc(ctx, r.Stop)
	go r.run()
	return nil
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	poll := time.NewTicker(r.opts.PollInterval)
	defer poll.Stop()
	tick := time.NewTicker(r.opts.TickInterval)
	defer tick.Stop()

	r.spawnPoll()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-poll.C:
			r.spawnPoll()
		case <-tick.C:
			r.Advance(r.opts.TickInterval)
		}
	}
}

// Stop cancels the timers, any pending out-of-band poll and in-flight requests, then closes
// every subscription. Results arriving afterwards are discarded. Stop is idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	for _, sub := range subs {
		sub.close()
	}
	r.logger.Debug("reconciler stopped")
}

// Stopped reports whether Stop was called.
func (r *Reconciler) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Reset returns the view to [StateUnknown], as on sign-out. Volume is kept.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.resetLocked()
	r.publishLocked()
}

// Poll fetches the authoritative state and merges it into the view.
//
// Nothing playing clears the track. On failure the view is left unchanged and the error is
// returned, except that a reauth failure resets the view. A poll that completes after a newer
// one has been merged is dropped.
func (r *Reconciler) Poll(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return shared.ErrStopped
	}
	r.pollSeq++
	seq := r.pollSeq
	r.mu.Unlock()

	cp, err := r.remote.CurrentlyPlaying(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return shared.ErrStopped
	}
	if err != nil {
		if shared.IsReauthRequired(err) {
			r.resetLocked()
			r.publishLocked()
		}
		return err
	}
	if seq <= r.applied {
		r.logger.Debug("dropping stale poll", "seq", seq, "applied", r.applied)
		return nil
	}
	r.applied = seq

	r.mergeLocked(cp)
	r.publishLocked()
	return nil
}

func (r *Reconciler) mergeLocked(cp *spotify.CurrentlyPlaying) {
	v := &r.view
	prevID := ""
	if v.Track != nil {
		prevID = v.Track.ID
	}

	if cp == nil || cp.Item == nil {
		v.Track = nil
		v.IsPlaying = false
		v.DurationMS = 0
		if !r.seek.Active() {
			v.PositionMS = 0
		}
	} else {
		if prevID != cp.Item.ID {
			v.Track = trackFrom(cp.Item)
		}
		v.IsPlaying = cp.IsPlaying
		v.DurationMS = cp.Item.DurationMS
		if !r.seek.Active() {
			v.PositionMS = cp.ProgressMS
		}
	}

	v.PositionMS = r.clampPositionLocked(v.PositionMS)
	v.State = StateSynced
	v.LastSyncedAt = r.opts.Now()

	if v.Track != nil && v.Track.ID != prevID {
		r.logger.Debug("track changed", "track", v.Track.Name, "artist", v.Track.ArtistNames())
	}
}

// Advance moves the local position forward by elapsed while playing, stopping exactly at the
// track duration. It does nothing during a seek.
func (r *Reconciler) Advance(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := &r.view
	if r.stopped || !v.IsPlaying || r.seek.Active() || v.DurationMS <= 0 || v.PositionMS >= v.DurationMS {
		return
	}
	v.PositionMS = min(v.PositionMS+int(elapsed.Milliseconds()), v.DurationMS)
	r.publishLocked()
}

// Toggle pauses when playing and plays otherwise. On success the view flips immediately,
// ahead of the next poll.
func (r *Reconciler) Toggle(ctx context.Context) error {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return shared.ErrStopped
	}
	playing := r.view.IsPlaying
	r.mu.Unlock()

	op, call := "play", func() error { return r.remote.Play(ctx, "") }
	if playing {
		op, call = "pause", func() error { return r.remote.Pause(ctx) }
	}

	return r.finish(op, call(), func(v *View) { v.IsPlaying = !playing })
}

// PlayContext starts an album, playlist or artist context on the active device.
func (r *Reconciler) PlayContext(ctx context.Context, contextURI string) error {
	if contextURI == "" {
		return shared.ErrMissingArgument
	}

	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	if r.Stopped() {
		return shared.ErrStopped
	}

	err := r.remote.Play(ctx, contextURI)
	return r.finish("play context", err, func(v *View) {
		v.IsPlaying = true
		r.scheduleRefreshLocked()
	})
}

// Skip moves to the next or previous track. The new track is not guessed; an extra poll is
// scheduled SkipRefreshDelay later to pick it up.
func (r *Reconciler) Skip(ctx context.Context, dir Direction) error {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	if r.Stopped() {
		return shared.ErrStopped
	}

	call := r.remote.Next
	if dir == Previous {
		call = r.remote.Previous
	}

	return r.finish("skip "+dir.String(), call(ctx), func(*View) {
		r.scheduleRefreshLocked()
	})
}

// SetVolume clamps percent to 0..100, shows it at once and sends it to the remote.
//
// Remote failures are logged, not returned. Session failures ([*shared.AuthError]) are
// returned unchanged.
func (r *Reconciler) SetVolume(ctx context.Context, percent int) error {
	percent = shared.Clamp(percent, 0, 100)

	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return shared.ErrStopped
	}
	r.view.Volume = percent
	r.publishLocked()
	r.mu.Unlock()

	err := r.finish("set volume", r.remote.SetVolume(ctx, percent), nil)
	var authErr *shared.AuthError
	if err == nil || errors.As(err, &authErr) {
		return err
	}
	r.logger.Warn("volume change failed", "percent", percent, "error", err)
	return nil
}

// BeginSeek opens a seek at the current position. Polls stop moving the position until the
// seek is committed.
func (r *Reconciler) BeginSeek() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.seek.Active() {
		return
	}
	r.seek = SeekIntent{Phase: SeekDragging, TargetMS: r.view.PositionMS}
	r.view.Seeking = true
	r.publishLocked()
}

// UpdateSeek moves the displayed position during a drag, opening a seek if none is active.
// Nothing is sent to the remote.
func (r *Reconciler) UpdateSeek(positionMS int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.seek.Phase == SeekCommitting {
		return
	}
	positionMS = r.clampPositionLocked(positionMS)
	r.seek = SeekIntent{Phase: SeekDragging, TargetMS: positionMS}
	r.view.PositionMS = positionMS
	r.view.Seeking = true
	r.publishLocked()
}

// CommitSeek sends positionMS to the remote and ends the seek whatever the outcome.
//
// Without an open seek it does nothing, so a repeated commit sends a single request.
func (r *Reconciler) CommitSeek(ctx context.Context, positionMS int) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return shared.ErrStopped
	}
	if r.seek.Phase != SeekDragging {
		r.mu.Unlock()
		return nil
	}
	positionMS = r.clampPositionLocked(positionMS)
	r.seek = SeekIntent{Phase: SeekCommitting, TargetMS: positionMS}
	r.view.PositionMS = positionMS
	r.publishLocked()
	r.mu.Unlock()

	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	err := r.remote.Seek(ctx, positionMS)

	r.mu.Lock()
	if !r.stopped {
		r.seek = SeekIntent{}
		r.view.Seeking = false
		r.publishLocked()
	}
	r.mu.Unlock()

	return r.finish("seek", err, nil)
}

// finish applies the outcome of a command: onSuccess on success, [StateNoDevice] when no
// device is active, a reset when reauth is required. The command error is returned as is.
func (r *Reconciler) finish(op string, err error, onSuccess func(*View)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return err
	}

	switch {
	case err == nil:
		if onSuccess != nil {
			onSuccess(&r.view)
			r.publishLocked()
		}
	case errors.Is(err, shared.ErrNoActiveDevice):
		r.logger.Info("no active device", "op", op)
		r.view.State = StateNoDevice
		r.publishLocked()
	case shared.IsReauthRequired(err):
		r.logger.Warn("session expired", "op", op)
		r.resetLocked()
		r.publishLocked()
	default:
		r.logger.Debug("command failed", "op", op, "error", err)
	}
	return err
}

// spawnPoll starts a timer driven poll unless one is still running.
func (r *Reconciler) spawnPoll() {
	r.mu.Lock()
	if r.stopped || r.polling {
		r.mu.Unlock()
		return
	}
	r.polling = true
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.pollAndReport("poll")

		r.mu.Lock()
		r.polling = false
		r.mu.Unlock()
	}()
}

// scheduleRefreshLocked replaces any pending out-of-band poll with one SkipRefreshDelay from now.
func (r *Reconciler) scheduleRefreshLocked() {
	if r.stopped {
		return
	}
	if r.pending != nil {
		r.pending.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(r.opts.SkipRefreshDelay, func() {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		if r.pending == t {
			r.pending = nil
		}
		r.wg.Add(1)
		r.mu.Unlock()

		defer r.wg.Done()
		r.pollAndReport("refresh")
	})
	r.pending = t
}

// pollAndReport runs a poll on the reconciler's own context. Failures are logged; reauth
// failures are also sent to subscribers so the display layer can ask the user to sign in.
func (r *Reconciler) pollAndReport(op string) {
	err := r.Poll(r.ctx)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrStopped), errors.Is(err, context.Canceled):
	case shared.IsReauthRequired(err):
		r.logger.Warn("poll needs reauthorization", "op", op, "error", err)
		r.mu.Lock()
		for _, sub := range r.subs {
			sub.sendError(ErrorEvent{Op: op, Err: err})
		}
		r.mu.Unlock()
	default:
		r.logger.Debug("poll failed", "op", op, "error", err)
	}
}

func (r *Reconciler) resetLocked() {
	r.view = View{State: StateUnknown, Volume: r.view.Volume}
	r.seek = SeekIntent{}
	// polls issued before the reset must not bring the old session back
	r.applied = r.pollSeq
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (r *Reconciler) clampPositionLocked(positionMS int) int {
	if positionMS < 0 {
		return 0
	}
	if r.view.DurationMS > 0 && positionMS > r.view.DurationMS {
		return r.view.DurationMS
	}
	return positionMS
}

func (r *Reconciler) publishLocked() {
	for _, sub := range r.subs {
		sub.sendView(r.view)
	}
}
