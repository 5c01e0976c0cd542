package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/store"
	"github.com/papercomputeco/reel/pkg/utils"
)

// newMCPHandler builds the MCP tool surface of the dev backend. The
// tools mirror the HTTP API so agent tooling can drive scripted runs
// over MCP instead of REST.
func (s *Server) newMCPHandler() http.Handler {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "reel-dev",
		Version: utils.Version,
	}, &mcp.ServerOptions{})

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_apps",
		Description: "List the agent apps served by this dev backend",
	}, s.handleMCPListApps)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "run_agent",
		Description: "Send a message to a scripted agent and get its reply, recording both turns in the session transcript",
	}, s.handleMCPRunAgent)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get_session",
		Description: "Fetch a session with its full transcript",
	}, s.handleMCPGetSession)

	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})
}

// ListAppsInput is the input for the list_apps MCP tool.
type ListAppsInput struct{}

// ListAppsOutput is the output of the list_apps MCP tool.
type ListAppsOutput struct {
	Apps []string `json:"apps" jsonschema:"the app names this backend serves"`
}

func (s *Server) handleMCPListApps(_ context.Context, _ *mcp.CallToolRequest, _ ListAppsInput) (*mcp.CallToolResult, ListAppsOutput, error) {
	output := ListAppsOutput{Apps: s.config.Apps}

	payload, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not encode apps: %v", err)}},
		}, ListAppsOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, output, nil
}

// RunAgentInput is the input for the run_agent MCP tool.
type RunAgentInput struct {
	App       string `json:"app" jsonschema:"the app name the run belongs to"`
	UserID    string `json:"userId" jsonschema:"the user the session belongs to"`
	SessionID string `json:"sessionId,omitempty" jsonschema:"the session to continue; omit to start a new session"`
	Message   string `json:"message" jsonschema:"the user message to send"`
}

// RunAgentOutput is the output of the run_agent MCP tool.
type RunAgentOutput struct {
	SessionID string `json:"sessionId" jsonschema:"the session the exchange was recorded in"`
	Reply     string `json:"reply" jsonschema:"the scripted agent reply"`
}

func (s *Server) handleMCPRunAgent(ctx context.Context, _ *mcp.CallToolRequest, input RunAgentInput) (*mcp.CallToolResult, RunAgentOutput, error) {
	if input.Message == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "message is required"}},
		}, RunAgentOutput{}, nil
	}

	sessionID, err := s.ensureSession(ctx, input.SessionID, input.App, input.UserID)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not prepare session: %v", err)}},
		}, RunAgentOutput{}, nil
	}

	userEvent := &agent.SessionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      agent.EventTypeUserMessage,
		Role:      agent.RoleUser,
		Content:   agent.Content{Role: agent.RoleUser, Parts: []agent.Part{{Text: input.Message}}},
		SessionID: sessionID,
	}
	if err := s.store.AppendEvent(ctx, sessionID, userEvent); err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not store user message: %v", err)}},
		}, RunAgentOutput{}, nil
	}

	author := input.App
	if author == "" {
		author = "dev-agent"
	}
	turn := s.scriptedTurn(input.Message)

	final := &agent.Event{
		ID:      uuid.NewString(),
		Author:  author,
		Content: &agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: turn.Reply}}},
	}
	if err := s.persistAgentTurn(ctx, sessionID, final); err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, RunAgentOutput{}, nil
	}

	output := RunAgentOutput{
		SessionID: sessionID,
		Reply:     turn.Reply,
	}

	payload, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not encode reply: %v", err)}},
		}, RunAgentOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, output, nil
}

// GetSessionInput is the input for the get_session MCP tool.
type GetSessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"the session to fetch"`
}

// GetSessionOutput is the output of the get_session MCP tool.
type GetSessionOutput struct {
	Session *agent.Session `json:"session" jsonschema:"the session with its full transcript"`
}

func (s *Server) handleMCPGetSession(ctx context.Context, _ *mcp.CallToolRequest, input GetSessionInput) (*mcp.CallToolResult, GetSessionOutput, error) {
	if input.SessionID == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "sessionId is required"}},
		}, GetSessionOutput{}, nil
	}

	session, err := s.store.GetSession(ctx, input.SessionID)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "session not found: " + input.SessionID}},
			}, GetSessionOutput{}, nil
		}

		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not load session: %v", err)}},
		}, GetSessionOutput{}, nil
	}

	output := GetSessionOutput{Session: session}

	payload, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("could not encode session: %v", err)}},
		}, GetSessionOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, output, nil
}
