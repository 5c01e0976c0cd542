package stream

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/reel/pkg/agent"
)

// Handler receives the outcomes of a streaming run. Any field may be nil.
type Handler struct {
	// OnEvent is invoked once per decoded event, in stream order.
	OnEvent func(*agent.Event)

	// OnWarning is invoked for each malformed payload the stream
	// tolerates. The run continues after a warning.
	OnWarning func(*agent.ParseError)

	// OnComplete is invoked exactly once when the stream ends normally.
	OnComplete func()

	// OnError is invoked exactly once when the run fails, either because
	// the transport could not be opened or because a read failed
	// mid-stream. A run ends with OnComplete or OnError, never both.
	OnError func(error)
}

// Subscription is the handle for one streaming run. It is returned
// already live: by the time Start hands it back, the transport has been
// opened (or the failure delivered) and decoding is underway.
type Subscription struct {
	handler  Handler
	dispatch func(func())

	cancelled atomic.Bool
	done      atomic.Bool

	bodyMu    sync.Mutex
	body      io.ReadCloser
	closeBody sync.Once

	finished   chan struct{}
	finishOnce sync.Once
}

func newSubscription(handler Handler, deliver func(func())) *Subscription {
	if deliver == nil {
		deliver = func(fn func()) { fn() }
	}
	return &Subscription{
		handler:  handler,
		dispatch: deliver,
		finished: make(chan struct{}),
	}
}

// Cancel stops the run. It is idempotent and safe from any goroutine.
// After Cancel, no further callbacks are invoked: the run ends silently,
// with neither OnComplete nor OnError. The underlying transport is
// released immediately, which unblocks any in-flight read.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
	s.releaseBody()
}

// Cancelled reports whether Cancel has been called.
func (s *Subscription) Cancelled() bool {
	return s.cancelled.Load()
}

// Done returns a channel that is closed once the run has fully stopped:
// after the terminal callback has been dispatched, or after a cancelled
// pump has wound down.
func (s *Subscription) Done() <-chan struct{} {
	return s.finished
}

func (s *Subscription) attachBody(body io.ReadCloser) {
	s.bodyMu.Lock()
	s.body = body
	s.bodyMu.Unlock()
}

func (s *Subscription) releaseBody() {
	s.closeBody.Do(func() {
		s.bodyMu.Lock()
		body := s.body
		s.bodyMu.Unlock()
		if body != nil {
			body.Close()
		}
	})
}

func (s *Subscription) finish() {
	s.finishOnce.Do(func() {
		close(s.finished)
	})
}

// deliver hands one decoded event to the handler unless the run has
// already been cancelled or reached a terminal state.
func (s *Subscription) deliver(ev *agent.Event) {
	if s.cancelled.Load() || s.done.Load() {
		return
	}
	if s.handler.OnEvent == nil {
		return
	}
	s.dispatch(func() {
		s.handler.OnEvent(ev)
	})
}

// warn surfaces one recoverable parse failure to the handler.
func (s *Subscription) warn(perr *agent.ParseError) {
	if s.cancelled.Load() || s.done.Load() {
		return
	}
	if s.handler.OnWarning == nil {
		return
	}
	s.dispatch(func() {
		s.handler.OnWarning(perr)
	})
}

// complete marks the run terminal and dispatches OnComplete. A cancelled
// run stays silent, and only the first terminal transition wins.
func (s *Subscription) complete() {
	if s.cancelled.Load() {
		return
	}
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	if s.handler.OnComplete == nil {
		return
	}
	s.dispatch(func() {
		s.handler.OnComplete()
	})
}

// fail marks the run terminal and dispatches OnError.
func (s *Subscription) fail(err error) {
	if s.cancelled.Load() {
		return
	}
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	if s.handler.OnError == nil {
		return
	}
	s.dispatch(func() {
		s.handler.OnError(err)
	})
}
