package agent

import (
	"encoding/json"
	"strings"
)

// Event is one streamed agent response chunk from a run. Events are
// immutable once decoded and carry no identity beyond arrival order; the
// ID field is assigned by the backend and is not required to be unique
// across a stream.
type Event struct {
	ID      string   `json:"id"`
	Author  string   `json:"author"`
	Content *Content `json:"content,omitempty"`

	// Partial marks an incremental chunk of a longer response, when the
	// backend distinguishes partial from final events.
	Partial bool `json:"partial,omitempty"`
}

// Text returns the concatenated text of the event's content parts.
// Non-text parts contribute nothing.
func (e *Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// Text returns the concatenated text of the content parts.
func (c Content) Text() string {
	var b strings.Builder
	for _, part := range c.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// ParseEvent decodes a raw data-frame payload into an Event.
//
// An empty or whitespace-only payload, or one that does not decode into
// the event envelope, yields a *ParseError carrying the offending text
// and the cause. Callers treat that as a recoverable diagnostic, not a
// stream failure.
func ParseEvent(payload string) (*Event, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, &ParseError{Payload: payload, Err: ErrEmptyPayload}
	}

	ev := &Event{}
	if err := json.Unmarshal([]byte(payload), ev); err != nil {
		return nil, &ParseError{Payload: payload, Err: err}
	}

	return ev, nil
}
