package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/store"
	"github.com/papercomputeco/reel/pkg/utils"
)

// stateResponsePreview caps how much of the last reply is kept in
// session state.
const stateResponsePreview = 100

// handleRunSSE answers a streaming run with scripted reply frames. The
// user turn and the final agent turn are both appended to the session
// transcript, so the stored session reads like a real conversation.
func (s *Server) handleRunSSE(c *fiber.Ctx) error {
	var req agent.RunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "invalid request body"})
	}

	prompt := req.NewMessage.Text()
	if prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "Message text is required"})
	}

	sessionID, err := s.ensureSession(c.Context(), req.SessionID, req.AppName, req.UserID)
	if err != nil {
		s.logger.Error("could not prepare session", "session_id", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not prepare session"})
	}
	req.SessionID = sessionID

	userEvent := &agent.SessionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      agent.EventTypeUserMessage,
		Role:      agent.RoleUser,
		Content:   req.NewMessage,
		SessionID: req.SessionID,
	}
	if err := s.store.AppendEvent(c.Context(), req.SessionID, userEvent); err != nil {
		s.logger.Error("could not store user message", "session_id", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not store user message"})
	}

	turn := s.scriptedTurn(prompt)
	s.logger.Debug("starting scripted run", "session_id", req.SessionID, "prompt_len", len(prompt), "chunks", len(turn.Chunks))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	pr, pw := io.Pipe()
	go s.streamRun(req, turn, pw)

	// -1 streams the pipe with chunked encoding until the writer closes.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamRun writes the scripted reply frames and persists the agent
// turn. It runs in its own goroutine: the handler has already returned
// and fasthttp recycles the request context, so storage writes use a
// fresh background context.
func (s *Server) streamRun(req agent.RunRequest, turn ScriptTurn, pw *io.PipeWriter) {
	defer pw.Close()

	ctx := context.Background()
	author := req.AppName
	if author == "" {
		author = "dev-agent"
	}

	// Status frame first. The empty partial tells clients the run was
	// accepted before any reply text exists.
	status := &agent.Event{
		ID:      uuid.NewString(),
		Author:  author,
		Content: &agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: ""}}},
		Partial: true,
	}
	if err := writeRunEvent(pw, status); err != nil {
		s.logger.Debug("run stream closed by client", "session_id", req.SessionID, "error", err)
		return
	}

	chunks := turn.Chunks
	if len(chunks) == 0 {
		chunks = []string{turn.Reply}
	}
	delay := time.Duration(turn.DelayMS) * time.Millisecond

	for _, chunk := range chunks {
		if delay > 0 {
			time.Sleep(delay)
		}

		partial := &agent.Event{
			ID:      uuid.NewString(),
			Author:  author,
			Content: &agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: chunk}}},
			Partial: true,
		}
		if err := writeRunEvent(pw, partial); err != nil {
			s.logger.Debug("run stream closed by client", "session_id", req.SessionID, "error", err)
			return
		}
	}

	final := &agent.Event{
		ID:      uuid.NewString(),
		Author:  author,
		Content: &agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: turn.Reply}}},
	}
	if err := writeRunEvent(pw, final); err != nil {
		s.logger.Debug("run stream closed by client", "session_id", req.SessionID, "error", err)
		return
	}

	if err := s.persistAgentTurn(ctx, req.SessionID, final); err != nil {
		s.logger.Error("could not persist agent turn", "session_id", req.SessionID, "error", err)
	}
}

// ensureSession resolves the session a run records into, creating it
// when it does not exist yet. An empty id mints a new session.
func (s *Server) ensureSession(ctx context.Context, sessionID, appName, userID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	_, err := s.store.GetSession(ctx, sessionID)
	if err == nil {
		return sessionID, nil
	}

	var notFound store.NotFoundError
	if !errors.As(err, &notFound) {
		return "", err
	}

	session := &agent.Session{
		ID:        sessionID,
		AppName:   appName,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		State:     map[string]any{},
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", err
	}
	s.logger.Info("created session during run", "session_id", sessionID, "app", appName)

	return sessionID, nil
}

// persistAgentTurn appends the final agent event to the transcript and
// refreshes the session's activity state. A state refresh failure is
// logged but does not fail the turn.
func (s *Server) persistAgentTurn(ctx context.Context, sessionID string, final *agent.Event) error {
	raw, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("encoding agent response: %w", err)
	}

	agentEvent := &agent.SessionEvent{
		ID:        final.ID,
		Timestamp: time.Now().UTC(),
		Type:      agent.EventTypeAgentResponse,
		Role:      agent.RoleAssistant,
		Content:   *final.Content,
		SessionID: sessionID,
		Raw:       raw,
	}
	if err := s.store.AppendEvent(ctx, sessionID, agentEvent); err != nil {
		return fmt.Errorf("storing agent response: %w", err)
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("could not refresh session state", "session_id", sessionID, "error", err)
		return nil
	}

	state := session.State
	if state == nil {
		state = map[string]any{}
	}
	state["lastActivity"] = time.Now().UTC().Format(time.RFC3339)
	state["messageCount"] = session.EventCount
	state["lastAgentResponse"] = utils.Truncate(final.Text(), stateResponsePreview)

	if err := s.store.UpdateSessionState(ctx, sessionID, state); err != nil {
		s.logger.Error("could not refresh session state", "session_id", sessionID, "error", err)
	}

	return nil
}

// writeRunEvent encodes one event as an SSE data frame.
func writeRunEvent(w io.Writer, event *agent.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)

	return err
}
