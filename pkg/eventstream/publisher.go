package eventstream

import "context"

// Publisher publishes run events to an event stream backend.
type Publisher interface {
	PublishEvent(ctx context.Context, event *StreamEvent) error
	Close() error
}
