// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/store"
)

// timeFormat is RFC 3339 with fixed nanosecond width so stored timestamps
// sort lexicographically in ORDER BY.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Driver implements store.Driver using SQLite as the storage backend.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed session store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return OpenDB(db)
}

// OpenDB wraps an already opened SQLite-compatible database handle. The
// libsql driver reuses it, since it shares this schema and SQL dialect.
func OpenDB(db *sql.DB) (*Driver, error) {
	// One pooled connection: SQLite has a single writer, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Driver{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		state TEXT
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		timestamp TEXT NOT NULL,
		event_type TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		raw TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession stores a new session.
func (s *Driver) CreateSession(ctx context.Context, session *agent.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}
	if session.ID == "" {
		return errors.New("session ID is required")
	}

	exists, err := s.hasSession(ctx, session.ID)
	if err != nil {
		return err
	}
	if exists {
		return errors.New("session already exists: " + session.ID)
	}

	stateJSON, err := marshalNullable(session.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `INSERT INTO sessions (id, app_name, user_id, created_at, state) VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.AppName, session.UserID,
		session.CreatedAt.UTC().Format(timeFormat), stateJSON)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID with its events populated.
func (s *Driver) GetSession(ctx context.Context, id string) (*agent.Session, error) {
	query := `SELECT id, app_name, user_id, created_at, state FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var session agent.Session
	var createdAt string
	var stateJSON sql.NullString

	err := row.Scan(&session.ID, &session.AppName, &session.UserID, &createdAt, &stateJSON)
	if err == sql.ErrNoRows {
		return nil, store.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if stateJSON.Valid {
		if err := json.Unmarshal([]byte(stateJSON.String), &session.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
	}

	events, err := s.listEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Events = events
	session.EventCount = len(events)

	return &session, nil
}

// ListSessions returns session summaries ordered by creation time.
func (s *Driver) ListSessions(ctx context.Context, appName, userID string) ([]*agent.Session, error) {
	query := `
		SELECT s.id, s.app_name, s.user_id, s.created_at, COUNT(e.id)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
	`

	var conds []string
	var args []any
	if appName != "" {
		conds = append(conds, "s.app_name = ?")
		args = append(args, appName)
	}
	if userID != "" {
		conds = append(conds, "s.user_id = ?")
		args = append(args, userID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY s.id ORDER BY s.created_at, s.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*agent.Session
	for rows.Next() {
		var session agent.Session
		var createdAt string

		if err := rows.Scan(&session.ID, &session.AppName, &session.UserID, &createdAt, &session.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if session.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and all its events.
func (s *Driver) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.NotFoundError{ID: id}
	}

	return tx.Commit()
}

// UpdateSessionState replaces the session's state map.
func (s *Driver) UpdateSessionState(ctx context.Context, id string, state map[string]any) error {
	stateJSON, err := marshalNullable(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET state = ? WHERE id = ?`, stateJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.NotFoundError{ID: id}
	}

	return nil
}

// AppendEvent appends an event to a session's transcript.
func (s *Driver) AppendEvent(ctx context.Context, sessionID string, event *agent.SessionEvent) error {
	if event == nil {
		return errors.New("cannot store nil event")
	}

	exists, err := s.hasSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return store.NotFoundError{ID: sessionID}
	}

	contentJSON, err := json.Marshal(event.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	var raw sql.NullString
	if len(event.Raw) > 0 {
		raw = sql.NullString{String: string(event.Raw), Valid: true}
	}

	query := `INSERT INTO events (id, session_id, timestamp, event_type, role, content, raw) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		event.ID, sessionID, event.Timestamp.UTC().Format(timeFormat),
		event.Type, event.Role, string(contentJSON), raw)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// ListEvents returns a session's events in append order.
func (s *Driver) ListEvents(ctx context.Context, sessionID string) ([]agent.SessionEvent, error) {
	exists, err := s.hasSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.NotFoundError{ID: sessionID}
	}

	return s.listEvents(ctx, sessionID)
}

// listEvents loads events without checking the session exists first.
func (s *Driver) listEvents(ctx context.Context, sessionID string) ([]agent.SessionEvent, error) {
	query := `
		SELECT id, timestamp, event_type, role, content, raw
		FROM events WHERE session_id = ? ORDER BY rowid
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, sessionID)
}

// hasSession checks if a session exists by its ID.
func (s *Driver) hasSession(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ? LIMIT 1`, id)

	var exists int
	err := row.Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// scanEvents scans multiple rows into SessionEvent structs.
func scanEvents(rows *sql.Rows, sessionID string) ([]agent.SessionEvent, error) {
	var events []agent.SessionEvent

	for rows.Next() {
		var event agent.SessionEvent
		var timestamp, contentJSON string
		var raw sql.NullString

		if err := rows.Scan(&event.ID, &timestamp, &event.Type, &event.Role, &contentJSON, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		var err error
		if event.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(contentJSON), &event.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
		if raw.Valid {
			event.Raw = json.RawMessage(raw.String)
		}
		event.SessionID = sessionID

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// marshalNullable marshals a state map, mapping nil to SQL NULL.
func marshalNullable(state map[string]any) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}

	b, err := json.Marshal(state)
	if err != nil {
		return sql.NullString{}, err
	}

	return sql.NullString{String: string(b), Valid: true}, nil
}

// parseTime parses a stored timestamp back into a time.Time.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return t, nil
}

// Close closes the database connection.
func (s *Driver) Close() error {
	return s.db.Close()
}

// Ensure Driver implements store.Driver
var _ store.Driver = (*Driver)(nil)
