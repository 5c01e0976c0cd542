package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/store"
)

// Driver implements store.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the session and event maps
	mu sync.RWMutex

	// sessions maps session ID to the stored session record. Events are
	// kept separately so session reads stay cheap.
	sessions map[string]*agent.Session

	// events maps session ID to that session's transcript in append order
	events map[string][]agent.SessionEvent
}

// NewDriver creates a new in-memory session store.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*agent.Session),
		events:   make(map[string][]agent.SessionEvent),
	}
}

// CreateSession stores a new session.
func (s *Driver) CreateSession(_ context.Context, session *agent.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}
	if session.ID == "" {
		return errors.New("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return errors.New("session already exists: " + session.ID)
	}

	stored := *session
	stored.Events = nil
	stored.EventCount = 0
	s.sessions[session.ID] = &stored

	return nil
}

// GetSession retrieves a session by ID with its events populated.
func (s *Driver) GetSession(_ context.Context, id string) (*agent.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.NotFoundError{ID: id}
	}

	out := *session
	out.Events = append([]agent.SessionEvent(nil), s.events[id]...)
	out.EventCount = len(out.Events)

	return &out, nil
}

// ListSessions returns session summaries ordered by creation time.
func (s *Driver) ListSessions(_ context.Context, appName, userID string) ([]*agent.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*agent.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if appName != "" && session.AppName != appName {
			continue
		}
		if userID != "" && session.UserID != userID {
			continue
		}

		out := *session
		out.State = nil
		out.EventCount = len(s.events[session.ID])
		sessions = append(sessions, &out)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// DeleteSession removes a session and all its events.
func (s *Driver) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return store.NotFoundError{ID: id}
	}

	delete(s.sessions, id)
	delete(s.events, id)

	return nil
}

// UpdateSessionState replaces the session's state map. The map is swapped
// whole so snapshots handed out by GetSession stay safe to read.
func (s *Driver) UpdateSessionState(_ context.Context, id string, state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return store.NotFoundError{ID: id}
	}

	session.State = state

	return nil
}

// AppendEvent appends an event to a session's transcript.
func (s *Driver) AppendEvent(_ context.Context, sessionID string, event *agent.SessionEvent) error {
	if event == nil {
		return errors.New("cannot store nil event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return store.NotFoundError{ID: sessionID}
	}

	s.events[sessionID] = append(s.events[sessionID], *event)

	return nil
}

// ListEvents returns a session's events in append order.
func (s *Driver) ListEvents(_ context.Context, sessionID string) ([]agent.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, store.NotFoundError{ID: sessionID}
	}

	return append([]agent.SessionEvent(nil), s.events[sessionID]...), nil
}

// Count returns the number of sessions in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

var _ store.Driver = (*Driver)(nil)
