// Package store persists agent session transcripts.
package store

import (
	"context"

	"github.com/papercomputeco/reel/pkg/agent"
)

// Driver defines the interface for persisting and retrieving session
// transcripts in a storage backend. The dev server uses a Driver as its
// session backend, and the CLI uses one for locally saved conversations.
type Driver interface {
	// CreateSession stores a new session. The session ID must be set and
	// not already exist.
	CreateSession(ctx context.Context, session *agent.Session) error

	// GetSession retrieves a session by ID with its events populated and
	// EventCount set.
	GetSession(ctx context.Context, id string) (*agent.Session, error)

	// ListSessions returns session summaries (no events or state, but with
	// EventCount) ordered by creation time. Empty appName or userID means
	// no filter on that field.
	ListSessions(ctx context.Context, appName, userID string) ([]*agent.Session, error)

	// DeleteSession removes a session and all its events.
	DeleteSession(ctx context.Context, id string) error

	// UpdateSessionState replaces the session's state map.
	UpdateSessionState(ctx context.Context, id string, state map[string]any) error

	// AppendEvent appends an event to a session's transcript. Events keep
	// their append order.
	AppendEvent(ctx context.Context, sessionID string, event *agent.SessionEvent) error

	// ListEvents returns a session's events in append order.
	ListEvents(ctx context.Context, sessionID string) ([]agent.SessionEvent, error)

	// Close closes the store and releases any resources.
	Close() error
}
