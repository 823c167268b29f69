package playback

const errorBufferSize = 8

// ErrorEvent is a failure the reconciler hit on its own, outside any caller's command.
type ErrorEvent struct {
	Op  string
	Err error
}

// Subscription delivers view updates to one display layer.
//
// Views holds only the latest snapshot: a slow reader skips intermediate views but always sees
// the newest one. Done is closed when the reconciler stops.
type Subscription struct {
	Views  <-chan View
	Errors <-chan ErrorEvent
	Done   <-chan struct{}

	viewCh  chan View
	errorCh chan ErrorEvent
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		viewCh:  make(chan View, 1),
		errorCh: make(chan ErrorEvent, errorBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.Views = s.viewCh
	s.Errors = s.errorCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

// sendView replaces any unread view with v. Callers serialize sends.
func (s *Subscription) sendView(v View) {
	select {
	case <-s.viewCh:
	default:
	}
	select {
	case s.viewCh <- v:
	default:
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
