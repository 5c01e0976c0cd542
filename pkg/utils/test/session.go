package testutils

import (
	"time"

	"github.com/papercomputeco/reel/pkg/agent"
)

// NewTestSession creates a simple session for testing.
func NewTestSession(id, appName string) *agent.Session {
	return &agent.Session{
		ID:        id,
		AppName:   appName,
		UserID:    "test-user",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// NewTestEvent creates a simple session event for testing.
func NewTestEvent(id, sessionID, role, text string) *agent.SessionEvent {
	eventType := agent.EventTypeUserMessage
	if role == agent.RoleAssistant {
		eventType = agent.EventTypeAgentResponse
	}

	return &agent.SessionEvent{
		ID:        id,
		SessionID: sessionID,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Type:      eventType,
		Role:      role,
		Content: agent.Content{
			Role:  role,
			Parts: []agent.Part{{Text: text}},
		},
	}
}
