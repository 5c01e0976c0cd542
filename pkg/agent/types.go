package agent

import (
	"encoding/json"
	"time"
)

// Part is one piece of message content. The agent protocol currently only
// carries text parts; unknown part kinds decode to a Part with empty Text
// and are skipped by Text().
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is the message body exchanged with an agent: an ordered list of
// parts plus the role of their author.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// UserMessage builds a single-part user Content for a run request.
func UserMessage(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// RunRequest is the body of a streaming run call.
type RunRequest struct {
	// AppName selects which agent app handles the run.
	AppName string `json:"appName"`

	// UserID identifies the backend user the session belongs to.
	UserID string `json:"userId"`

	// SessionID is the session the new message is appended to. The backend
	// creates the session if it does not exist yet.
	SessionID string `json:"sessionId"`

	// NewMessage is the user turn to run the agent against.
	NewMessage Content `json:"newMessage"`

	// Streaming requests incremental SSE delivery. The backend defaults it
	// to true, so it is always sent explicitly to avoid ambiguity.
	Streaming bool `json:"streaming"`

	// FunctionCallEventID resumes a pending function call, when set.
	FunctionCallEventID string `json:"functionCallEventId,omitempty"`

	// StateDelta carries session state changes piggybacked on the run.
	StateDelta map[string]any `json:"stateDelta,omitempty"`
}

// Session is a conversation with an agent app. List endpoints return
// sessions without Events and State; Get returns them populated.
type Session struct {
	ID        string    `json:"id"`
	AppName   string    `json:"appName"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	// EventCount is only populated by the list endpoint.
	EventCount int `json:"eventCount,omitempty"`

	Events []SessionEvent `json:"events,omitempty"`
	State  map[string]any `json:"state,omitempty"`
}

// SessionEvent is one stored turn in a session transcript: a user message
// or an agent response.
type SessionEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Type is "user_message" or "agent_response".
	Type string `json:"type"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	Content   Content `json:"content"`
	SessionID string  `json:"sessionId"`

	// Raw preserves the upstream agent response verbatim for debugging.
	// Only populated on agent_response events.
	Raw json.RawMessage `json:"rawResponse,omitempty"`
}

// Event type constants for SessionEvent.Type.
const (
	EventTypeUserMessage   = "user_message"
	EventTypeAgentResponse = "agent_response"
)

// Role constants for SessionEvent.Role and Content.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// EvalSetSummary is the list-view shape of an evaluation set.
type EvalSetSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CaseCount int    `json:"caseCount"`
}

// EvalCase is a single recorded conversation used for evaluation.
type EvalCase struct {
	ID                string           `json:"id"`
	Conversation      []map[string]any `json:"conversation"`
	SessionInput      map[string]any   `json:"sessionInput"`
	CreationTimestamp time.Time        `json:"creationTimestamp"`
}

// Artifact is a named, versioned output attached to a session.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   any       `json:"content"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// TracePerformance summarizes a session trace.
type TracePerformance struct {
	TotalEvents   int `json:"totalEvents"`
	UserMessages  int `json:"userMessages"`
	AgentMessages int `json:"agentMessages"`
}

// EventTrace is the debug trace for a single event.
type EventTrace struct {
	TraceID  string         `json:"traceId"`
	Events   []SessionEvent `json:"events"`
	Timeline []any          `json:"timeline"`
}

// SessionTrace is the debug trace for a whole session.
type SessionTrace struct {
	SessionID   string           `json:"sessionId"`
	Trace       []SessionEvent   `json:"trace"`
	Performance TracePerformance `json:"performance"`
	Message     string           `json:"message,omitempty"`
}

// ServerStatus is the backend's root health response.
type ServerStatus struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	RemoteAgent string `json:"remote_agent"`
}
