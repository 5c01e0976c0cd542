// Package stream implements the client side of a streaming agent run.
//
// A Client opens a run against the backend, decodes the SSE response
// incrementally as chunks arrive, and delivers each decoded event to a
// Handler in arrival order. Malformed payloads are tolerated: they are
// surfaced as warnings and the stream continues. While a run is in
// flight the client drives a shared loading cell so UIs can reflect
// stream activity without touching the decode path.
//
// Optionally, every delivered event is republished through an
// eventstream.Publisher on a background worker pool, so downstream
// consumers see the same stream the subscriber does without slowing it.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/sse"
	"github.com/papercomputeco/reel/pkg/state"
	"github.com/papercomputeco/reel/stream/worker"
)

// readBufferSize is the transport read granularity. Chunk boundaries are
// invisible to the decoder, so the size only affects syscall frequency.
const readBufferSize = 4096

// Client runs streaming requests. A single Client serves any number of
// sequential or concurrent runs; each Start call returns its own
// Subscription.
type Client struct {
	opener  Opener
	loading *state.Cell[bool]
	logger  *slog.Logger
	deliver func(func())
	pool    *worker.Pool
	backend string
}

// NewClient builds a Client from the config. The Opener is required.
func NewClient(c Config) (*Client, error) {
	if c.Opener == nil {
		return nil, errors.New("opener is required")
	}

	loading := c.Loading
	if loading == nil {
		loading = state.NewCell(false)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	client := &Client{
		opener:  c.Opener,
		loading: loading,
		logger:  log,
		deliver: c.Deliver,
		backend: c.Backend,
	}

	if c.Publisher != nil {
		pool, err := worker.NewPool(&worker.Config{
			Publisher:  c.Publisher,
			NumWorkers: c.PublishWorkers,
			QueueSize:  c.PublishQueueSize,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		client.pool = pool
	}

	return client, nil
}

// Loading returns the cell the client drives while runs are in flight.
func (c *Client) Loading() *state.Cell[bool] {
	return c.loading
}

// Close drains the publish worker pool, blocking until queued envelopes
// have been handed to the publisher. The publisher itself is owned by
// the caller. Active subscriptions are not cancelled by Close.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// runState accumulates per-run counters for the pump goroutine. It is
// touched only by that goroutine, never shared.
type runState struct {
	appName   string
	userID    string
	sessionID string
	startedAt time.Time
	delivered int
	warnings  int
}

// Start begins a streaming run and returns its Subscription.
//
// The loading cell is set true before the transport is opened, so
// subscribers observe activity even if the open blocks. If the open
// fails, the cell is back to false and OnError has fired with an
// *OpenError by the time Start returns. On success, decoding continues
// on a background goroutine until the stream ends or the subscription
// is cancelled.
func (c *Client) Start(ctx context.Context, req agent.RunRequest, handler Handler) *Subscription {
	sub := newSubscription(handler, c.deliver)

	c.loading.Set(true)

	body, err := c.opener.OpenRun(ctx, req)
	if err != nil {
		c.loading.Set(false)
		c.logger.Error("could not open event stream", "session_id", req.SessionID, "error", err)
		sub.fail(&OpenError{Err: err})
		sub.finish()
		return sub
	}
	sub.attachBody(body)

	run := &runState{
		appName:   req.AppName,
		userID:    req.UserID,
		sessionID: req.SessionID,
		startedAt: time.Now().UTC(),
	}

	go c.pump(sub, body, run)

	return sub
}

// pump reads the response body until EOF, error, or cancellation,
// feeding every chunk through the line splitter. It owns the splitter
// and the run counters; callbacks leave this goroutine only through the
// subscription's dispatch wrapper.
func (c *Client) pump(sub *Subscription, body io.ReadCloser, run *runState) {
	defer sub.finish()
	defer sub.releaseBody()

	splitter := sse.NewSplitter()
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(buf)

		// Cancellation is cooperative, checked once per read. A
		// cancelled run ends without a terminal callback.
		if sub.Cancelled() {
			c.loading.Set(false)
			c.logger.Debug("event stream cancelled", "session_id", run.sessionID, "delivered", run.delivered)
			return
		}

		if n > 0 {
			c.loading.Set(true)
			for _, line := range splitter.Process(string(buf[:n])) {
				c.processLine(sub, run, line)
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			// Streams may end without a trailing newline. The retained
			// tail is one final line, decoded like any other.
			if line, ok := splitter.Flush(); ok {
				c.processLine(sub, run, line)
			}
			c.loading.Set(false)
			sub.complete()
			c.republishCompleted(run)
			c.logger.Debug("event stream completed",
				"session_id", run.sessionID,
				"delivered", run.delivered,
				"warnings", run.warnings,
			)
			return
		}

		// Mid-stream transport failure. Whatever the splitter still
		// holds is an incomplete line and is discarded with it.
		c.loading.Set(false)
		c.logger.Error("event stream read failed", "session_id", run.sessionID, "error", readErr)
		sub.fail(&ReadError{Err: readErr})
		return
	}
}

// processLine takes one complete line from open to delivery: classify,
// validate, deliver, republish. Non-data lines are dropped. Malformed
// payloads count as warnings and never interrupt the run.
func (c *Client) processLine(sub *Subscription, run *runState, line string) {
	frame := sse.ParseFrame(line)
	if !frame.Data {
		return
	}

	ev, err := agent.ParseEvent(frame.Payload)
	if err != nil {
		run.warnings++
		c.logger.Warn("discarding malformed stream payload",
			"session_id", run.sessionID,
			"error", err,
		)

		var perr *agent.ParseError
		if errors.As(err, &perr) {
			sub.warn(perr)
		}
		return
	}

	run.delivered++
	sub.deliver(ev)
	c.republish(run, ev)
}

func (c *Client) republish(run *runState, ev *agent.Event) {
	if c.pool == nil {
		return
	}

	c.pool.Enqueue(worker.Job{Event: &eventstream.StreamEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRunEvent,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: eventstream.EventSource{
			Backend: c.backend,
			AppName: run.appName,
			UserID:  run.userID,
		},
		Run: eventstream.RunMeta{
			SessionID: run.sessionID,
			StartedAt: run.startedAt,
			Sequence:  run.delivered,
		},
		Event: ev,
	}})
}

// republishCompleted emits the terminal summary envelope. Failed and
// cancelled runs emit nothing: the envelope asserts the stream was
// consumed to completion.
func (c *Client) republishCompleted(run *runState) {
	if c.pool == nil {
		return
	}

	c.pool.Enqueue(worker.Job{Event: &eventstream.StreamEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRunCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: eventstream.EventSource{
			Backend: c.backend,
			AppName: run.appName,
			UserID:  run.userID,
		},
		Run: eventstream.RunMeta{
			SessionID:  run.sessionID,
			StartedAt:  run.startedAt,
			Delivered:  run.delivered,
			Warnings:   run.warnings,
			DurationMs: time.Since(run.startedAt).Milliseconds(),
		},
	}})
}
