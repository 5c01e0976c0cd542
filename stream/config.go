package stream

import (
	"context"
	"io"
	"log/slog"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/state"
)

// Opener establishes the transport for a streaming run. *agent.Client
// satisfies it; tests substitute scripted readers.
type Opener interface {
	OpenRun(ctx context.Context, req agent.RunRequest) (io.ReadCloser, error)
}

// Config carries the dependencies for a stream Client.
type Config struct {
	// Opener opens the underlying event-stream transport for each run.
	// Required.
	Opener Opener

	// Loading is the shared loading cell the client drives while a run
	// is in flight. If nil, the client uses a private cell that nothing
	// observes.
	Loading *state.Cell[bool]

	// Logger receives diagnostics for malformed payloads and transport
	// failures. If nil, logging is disabled.
	Logger *slog.Logger

	// Deliver, when set, wraps every subscriber callback invocation.
	// Consumers use it to marshal callbacks onto their own loop, for
	// example a UI program's update cycle. If nil, callbacks run inline
	// on the pump goroutine.
	Deliver func(func())

	// Publisher, when set, receives a republished envelope for every
	// delivered event and a completion envelope when a run ends
	// normally. If nil, republishing is disabled.
	Publisher eventstream.Publisher

	// PublishWorkers is the number of goroutines draining the publish
	// queue. Zero selects the default. Ignored when Publisher is nil.
	PublishWorkers uint

	// PublishQueueSize bounds the publish queue. Zero selects the
	// default. Ignored when Publisher is nil.
	PublishQueueSize uint

	// Backend names the upstream in republished envelopes.
	Backend string
}
