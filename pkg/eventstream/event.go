package eventstream

import (
	"time"

	"github.com/papercomputeco/reel/pkg/agent"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRunEvent is emitted for each agent event delivered by a
	// streaming run.
	EventTypeRunEvent = "reel.run.event"

	// EventTypeRunCompleted is emitted once when a streaming run reaches
	// normal completion.
	EventTypeRunCompleted = "reel.run.completed"
)

// StreamEvent is a transport-neutral envelope for republished run activity.
type StreamEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Run           RunMeta      `json:"run"`
	Event         *agent.Event `json:"event,omitempty"`
}

// EventSource identifies where the run originated.
type EventSource struct {
	Backend string `json:"backend"`
	AppName string `json:"app_name,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// RunMeta captures run lifecycle metadata for the event.
type RunMeta struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`

	// Sequence is the delivery-order slot of the wrapped agent event,
	// starting at 1. Zero on run.completed envelopes.
	Sequence int `json:"sequence,omitempty"`

	// Terminal summary, populated on run.completed envelopes only.
	Delivered  int   `json:"delivered,omitempty"`
	Warnings   int   `json:"warnings,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}
