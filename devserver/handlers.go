package devserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/store"
)

// isPlaceholderID reports whether a path parameter is one of the
// literal strings browser frontends send when no session is selected.
func isPlaceholderID(id string) bool {
	return id == "" || id == "undefined" || id == "null"
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(agent.ServerStatus{
		Message:     "reel dev backend is running",
		Status:      "running",
		RemoteAgent: s.AgentURL(),
	})
}

func (s *Server) handleListApps(c *fiber.Ctx) error {
	return c.JSON(s.config.Apps)
}

func (s *Server) handleGetAgentURL(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"remote_agent_url": s.AgentURL(),
	})
}

func (s *Server) handleSetAgentURL(c *fiber.Ctx) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "invalid request body"})
	}
	if body.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "URL is required"})
	}

	s.setAgentURL(body.URL)
	s.logger.Info("updated remote agent url", "url", body.URL)

	return c.JSON(map[string]any{
		"status":           "updated",
		"remote_agent_url": body.URL,
	})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	appName := c.Params("app")
	userID := c.Params("user")

	// The create body is optional; most clients post nothing.
	var body struct {
		State map[string]any `json:"state"`
	}
	_ = c.BodyParser(&body)

	session := &agent.Session{
		ID:        uuid.NewString(),
		AppName:   appName,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		State:     body.State,
	}
	if err := s.store.CreateSession(c.Context(), session); err != nil {
		s.logger.Error("could not create session", "app", appName, "user", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not create session"})
	}

	s.logger.Info("created session", "session_id", session.ID, "app", appName, "user", userID)

	return c.JSON(map[string]any{
		"sessionId": session.ID,
		"status":    "created",
	})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.store.ListSessions(c.Context(), c.Params("app"), c.Params("user"))
	if err != nil {
		s.logger.Error("could not list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not list sessions"})
	}

	return c.JSON(map[string]any{
		"sessions": sessions,
	})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	appName := c.Params("app")
	userID := c.Params("user")
	sessionID := c.Params("session")

	// Browser frontends ask for "undefined" or "null" before any session
	// exists. Hand back a fresh session instead of a 404 so they can
	// bootstrap.
	if isPlaceholderID(sessionID) {
		session := &agent.Session{
			ID:        uuid.NewString(),
			AppName:   appName,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
			State:     map[string]any{},
		}
		if err := s.store.CreateSession(c.Context(), session); err != nil {
			s.logger.Error("could not create session", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not create session"})
		}

		s.logger.Debug("created fresh session for placeholder id", "session_id", session.ID, "requested", sessionID)

		return c.JSON(session)
	}

	session, err := s.store.GetSession(c.Context(), sessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Session not found"})
		}
		s.logger.Error("could not load session", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not load session"})
	}
	if session.AppName != appName || session.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(agent.ErrorResponse{Detail: "Access denied"})
	}

	return c.JSON(session)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	session, err := s.store.GetSession(c.Context(), sessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Session not found"})
		}
		s.logger.Error("could not load session", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not load session"})
	}
	if session.AppName != c.Params("app") || session.UserID != c.Params("user") {
		return c.Status(fiber.StatusForbidden).JSON(agent.ErrorResponse{Detail: "Access denied"})
	}

	if err := s.store.DeleteSession(c.Context(), sessionID); err != nil {
		s.logger.Error("could not delete session", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not delete session"})
	}

	s.logger.Info("deleted session", "session_id", sessionID)

	return c.JSON(map[string]any{
		"status": "deleted",
	})
}

func (s *Server) handleListEvalSets(c *fiber.Ctx) error {
	s.evalMu.RLock()
	summaries := make([]agent.EvalSetSummary, 0, len(s.evalSets))
	for _, set := range s.evalSets {
		summaries = append(summaries, agent.EvalSetSummary{
			ID:        set.ID,
			Name:      set.Name,
			CaseCount: len(set.Cases),
		})
	}
	s.evalMu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})

	return c.JSON(map[string]any{
		"evalSets": summaries,
	})
}

func (s *Server) handleCreateEvalSet(c *fiber.Ctx) error {
	setID := c.Params("set")

	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	if _, ok := s.evalSets[setID]; ok {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "Eval set already exists"})
	}
	s.evalSets[setID] = &evalSet{
		ID:    setID,
		Name:  setID,
		Cases: []agent.EvalCase{},
	}

	s.logger.Info("created eval set", "eval_set", setID)

	return c.JSON(map[string]any{
		"status":    "created",
		"evalSetId": setID,
	})
}

func (s *Server) handleListEvalCases(c *fiber.Ctx) error {
	s.evalMu.RLock()
	defer s.evalMu.RUnlock()

	set, ok := s.evalSets[c.Params("set")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Eval set not found"})
	}

	return c.JSON(map[string]any{
		"cases": set.Cases,
	})
}

func (s *Server) handleAddSessionToEvalSet(c *fiber.Ctx) error {
	setID := c.Params("set")

	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "invalid request body"})
	}
	if body.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(agent.ErrorResponse{Detail: "sessionId is required"})
	}

	session, err := s.store.GetSession(c.Context(), body.SessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Session not found"})
		}
		s.logger.Error("could not load session", "session_id", body.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not load session"})
	}

	conversation := make([]map[string]any, 0, len(session.Events))
	for _, event := range session.Events {
		conversation = append(conversation, map[string]any{
			"eventId": event.ID,
			"role":    event.Role,
			"text":    event.Content.Text(),
		})
	}

	evalCase := agent.EvalCase{
		ID:           uuid.NewString(),
		Conversation: conversation,
		SessionInput: map[string]any{
			"appName": session.AppName,
			"userId":  session.UserID,
		},
		CreationTimestamp: time.Now().UTC(),
	}

	s.evalMu.Lock()
	set, ok := s.evalSets[setID]
	if !ok {
		s.evalMu.Unlock()
		return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Eval set not found"})
	}
	set.Cases = append(set.Cases, evalCase)
	s.evalMu.Unlock()

	s.logger.Info("added session to eval set", "eval_set", setID, "session_id", body.SessionID, "case_id", evalCase.ID)

	return c.JSON(map[string]any{
		"status": "added",
	})
}

func (s *Server) handleRunEval(c *fiber.Ctx) error {
	setID := c.Params("set")

	s.evalMu.RLock()
	_, ok := s.evalSets[setID]
	s.evalMu.RUnlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Eval set not found"})
	}

	// Runs are simulated. The dev backend has no judge, so a result ID
	// is minted and the run is reported as started.
	resultID := uuid.NewString()
	s.logger.Info("started eval run", "eval_set", setID, "eval_result_id", resultID)

	return c.JSON(map[string]any{
		"status":       "started",
		"evalResultId": resultID,
	})
}

func (s *Server) handleListEvalResults(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"results": []any{},
	})
}

func (s *Server) handleGetEvalResult(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"id":      c.Params("result"),
		"status":  "completed",
		"metrics": map[string]any{},
	})
}

func (s *Server) handleEventGraph(c *fiber.Ctx) error {
	sessionID := c.Params("session")
	eventID := c.Params("event")

	session, err := s.store.GetSession(c.Context(), sessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Session not found"})
		}
		s.logger.Error("could not load session", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not load session"})
	}
	if session.AppName != c.Params("app") || session.UserID != c.Params("user") {
		return c.Status(fiber.StatusForbidden).JSON(agent.ErrorResponse{Detail: "Access denied"})
	}

	return c.JSON(map[string]any{
		"dotSrc": eventGraphDOT(session.Events, eventID),
	})
}

// eventGraphDOT renders a session transcript as a left-to-right DOT
// chain, one node per event. The requested event is drawn filled.
func eventGraphDOT(events []agent.SessionEvent, eventID string) string {
	var b strings.Builder
	b.WriteString("digraph session {\n")
	b.WriteString("  rankdir=LR;\n")

	for i, event := range events {
		label := event.Type
		if event.Role != "" {
			label = fmt.Sprintf("%s\\n%s", event.Type, event.Role)
		}
		if event.ID == eventID {
			fmt.Fprintf(&b, "  n%d [label=\"%s\", style=filled];\n", i, label)
			continue
		}
		fmt.Fprintf(&b, "  n%d [label=\"%s\"];\n", i, label)
	}
	for i := 1; i < len(events); i++ {
		fmt.Fprintf(&b, "  n%d -> n%d;\n", i-1, i)
	}

	b.WriteString("}\n")

	return b.String()
}

// artifactKey scopes artifact names per session.
func artifactKey(sessionID, name string) string {
	return sessionID + ":" + name
}

func (s *Server) handleListArtifacts(c *fiber.Ctx) error {
	prefix := c.Params("session") + ":"

	s.artMu.RLock()
	names := make([]string, 0)
	for key, artifact := range s.artifacts {
		if strings.HasPrefix(key, prefix) {
			names = append(names, artifact.Name)
		}
	}
	s.artMu.RUnlock()

	sort.Strings(names)

	return c.JSON(map[string]any{
		"artifacts": names,
	})
}

func (s *Server) handleGetArtifact(c *fiber.Ctx) error {
	name := c.Params("name")
	key := artifactKey(c.Params("session"), name)

	s.artMu.Lock()
	defer s.artMu.Unlock()

	if artifact, ok := s.artifacts[key]; ok {
		return c.JSON(artifact)
	}

	// Nothing stored under that name yet. Mint a sample artifact so dev
	// frontends always have something to render, and keep it so later
	// list and delete calls see it.
	artifact := &agent.Artifact{
		ID:   uuid.NewString(),
		Name: name,
		Content: map[string]any{
			"type": "text",
			"data": "Sample content for " + name,
		},
		Version:   "1.0",
		CreatedAt: time.Now().UTC(),
	}
	s.artifacts[key] = artifact

	return c.JSON(artifact)
}

func (s *Server) handleGetArtifactVersion(c *fiber.Ctx) error {
	name := c.Params("name")
	version := c.Params("version")

	return c.JSON(agent.Artifact{
		ID:   uuid.NewString(),
		Name: name,
		Content: map[string]any{
			"type": "text",
			"data": fmt.Sprintf("Version %s of %s", version, name),
		},
		Version:   version,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) handleDeleteArtifact(c *fiber.Ctx) error {
	key := artifactKey(c.Params("session"), c.Params("name"))

	s.artMu.Lock()
	defer s.artMu.Unlock()

	if _, ok := s.artifacts[key]; !ok {
		return c.Status(fiber.StatusNotFound).JSON(agent.ErrorResponse{Detail: "Artifact not found"})
	}
	delete(s.artifacts, key)

	return c.JSON(map[string]any{
		"status": "deleted",
	})
}

func (s *Server) handleEventTrace(c *fiber.Ctx) error {
	// Per-event traces are not recorded by the dev backend; the shape is
	// served so trace UIs render an empty timeline instead of erroring.
	return c.JSON(agent.EventTrace{
		TraceID:  c.Params("event"),
		Events:   []agent.SessionEvent{},
		Timeline: []any{},
	})
}

func (s *Server) handleSessionTrace(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	if isPlaceholderID(sessionID) {
		return c.JSON(agent.SessionTrace{
			SessionID: sessionID,
			Trace:     []agent.SessionEvent{},
			Message:   "No trace available for undefined session",
		})
	}

	events, err := s.store.ListEvents(c.Context(), sessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return c.JSON(agent.SessionTrace{
				SessionID: sessionID,
				Trace:     []agent.SessionEvent{},
			})
		}
		s.logger.Error("could not load session events", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(agent.ErrorResponse{Detail: "could not load session events"})
	}

	performance := agent.TracePerformance{TotalEvents: len(events)}
	for _, event := range events {
		switch event.Role {
		case agent.RoleUser:
			performance.UserMessages++
		case agent.RoleAssistant:
			performance.AgentMessages++
		}
	}

	return c.JSON(agent.SessionTrace{
		SessionID:   sessionID,
		Trace:       events,
		Performance: performance,
	})
}
