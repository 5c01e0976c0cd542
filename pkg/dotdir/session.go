package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	sessionFile = "session.json"
)

// LastSession records the most recently used backend session so that
// chat --resume can pick up where the previous invocation left off.
type LastSession struct {
	// AppName is the agent app the session belongs to.
	AppName string `json:"app_name"`

	// UserID is the backend user the session was created for.
	UserID string `json:"user_id"`

	// SessionID is the backend session identifier.
	SessionID string `json:"session_id"`

	// UpdatedAt is when the session was last written to.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadLastSession loads the last-session state from a target .reel/session.json.
// Returns nil, nil if no state exists (nothing to resume).
// If overrideDir is non-empty, it is used instead of the default ~/.reel/ location.
func (m *Manager) LoadLastSession(overrideDir string) (*LastSession, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, sessionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &LastSession{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveLastSession persists the last-session state to a target .reel/session.json.
func (m *Manager) SaveLastSession(state *LastSession, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	path := filepath.Join(dir, sessionFile)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearLastSession removes the last-session state file so the next chat
// starts a fresh backend session. Returns nil if the file doesn't exist.
func (m *Manager) ClearLastSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, sessionFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
