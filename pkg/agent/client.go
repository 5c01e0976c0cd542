// Package agent is the HTTP client for an ADK-style agent backend.
//
// The backend exposes a small REST surface (apps, sessions, evals,
// artifacts, debug traces) plus one streaming endpoint, /run_sse, that
// answers a run request with an SSE stream of incremental Events.
// OpenRun only opens that stream and hands back the raw body; decoding
// and delivery live in the stream package.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the conventional local backend address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds non-streaming calls.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend address (e.g. "http://localhost:8000").
	// An empty BaseURL builds an unconfigured client: ListApps returns an
	// empty list and every other call fails with ErrNotConfigured.
	BaseURL string

	// Timeout bounds non-streaming calls. Defaults to DefaultTimeout.
	// It does not apply to OpenRun, whose body is read for as long as the
	// stream lasts.
	Timeout time.Duration
}

// ErrNotConfigured is returned when a call requires a backend URL and the
// client was built without one.
var ErrNotConfigured = errors.New("backend URL not configured")

// Client talks to one agent backend.
type Client struct {
	baseURL string

	// rest carries the bounded timeout for request/response calls.
	// stream has no overall timeout; a client-level timeout would tear
	// down long-lived SSE bodies mid-flight.
	rest   *http.Client
	stream *http.Client
}

// NewClient builds a Client for the backend at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		rest:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// BaseURL returns the configured backend address, empty if unconfigured.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status fetches the backend's root health response.
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	status := &ServerStatus{}
	if err := c.do(ctx, http.MethodGet, "/", nil, status); err != nil {
		return nil, err
	}

	return status, nil
}

// ListApps returns the available agent app names. An unconfigured client
// returns an empty list rather than an error, so callers can render an
// empty picker before any backend is set up.
func (c *Client) ListApps(ctx context.Context) ([]string, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	var apps []string
	if err := c.do(ctx, http.MethodGet, "/list-apps", nil, &apps); err != nil {
		return nil, err
	}

	return apps, nil
}

type agentURLBody struct {
	URL string `json:"url"`
}

type agentURLResponse struct {
	Status         string `json:"status,omitempty"`
	RemoteAgentURL string `json:"remote_agent_url"`
}

// GetAgentURL returns the remote agent URL the backend currently proxies to.
func (c *Client) GetAgentURL(ctx context.Context) (string, error) {
	var resp agentURLResponse
	if err := c.do(ctx, http.MethodGet, "/config/agent-url", nil, &resp); err != nil {
		return "", err
	}

	return resp.RemoteAgentURL, nil
}

// SetAgentURL points the backend at a new remote agent URL and returns
// the URL the backend acknowledged.
func (c *Client) SetAgentURL(ctx context.Context, agentURL string) (string, error) {
	var resp agentURLResponse
	if err := c.do(ctx, http.MethodPut, "/config/agent-url", agentURLBody{URL: agentURL}, &resp); err != nil {
		return "", err
	}

	return resp.RemoteAgentURL, nil
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// CreateSession creates a new session and returns its ID.
func (c *Client) CreateSession(ctx context.Context, appName, userID string) (string, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions", url.PathEscape(appName), url.PathEscape(userID))

	var resp createSessionResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}

	return resp.SessionID, nil
}

type listSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// ListSessions returns the sessions for a user in an app, without their
// event transcripts.
func (c *Client) ListSessions(ctx context.Context, appName, userID string) ([]Session, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions", url.PathEscape(appName), url.PathEscape(userID))

	var resp listSessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Sessions, nil
}

// GetSession returns a session with its full event transcript and state.
func (c *Client) GetSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID))

	session := &Session{}
	if err := c.do(ctx, http.MethodGet, path, nil, session); err != nil {
		return nil, err
	}

	return session, nil
}

// DeleteSession deletes a session.
func (c *Client) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID))

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

type listEvalSetsResponse struct {
	EvalSets []EvalSetSummary `json:"evalSets"`
}

// ListEvalSets returns the evaluation sets for an app.
func (c *Client) ListEvalSets(ctx context.Context, appName string) ([]EvalSetSummary, error) {
	path := fmt.Sprintf("/apps/%s/eval_sets", url.PathEscape(appName))

	var resp listEvalSetsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.EvalSets, nil
}

// CreateEvalSet creates an empty evaluation set with the given ID.
func (c *Client) CreateEvalSet(ctx context.Context, appName, evalSetID string) error {
	path := fmt.Sprintf("/apps/%s/eval_sets/%s", url.PathEscape(appName), url.PathEscape(evalSetID))

	return c.do(ctx, http.MethodPost, path, nil, nil)
}

type listEvalCasesResponse struct {
	Cases []EvalCase `json:"cases"`
}

// ListEvalCases returns the cases recorded in an evaluation set.
func (c *Client) ListEvalCases(ctx context.Context, appName, evalSetID string) ([]EvalCase, error) {
	path := fmt.Sprintf("/apps/%s/eval_sets/%s/evals", url.PathEscape(appName), url.PathEscape(evalSetID))

	var resp listEvalCasesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Cases, nil
}

type addSessionBody struct {
	SessionID string `json:"sessionId"`
}

// AddSessionToEvalSet snapshots a session into an evaluation set.
func (c *Client) AddSessionToEvalSet(ctx context.Context, appName, evalSetID, sessionID string) error {
	path := fmt.Sprintf("/apps/%s/eval_sets/%s/add_session",
		url.PathEscape(appName), url.PathEscape(evalSetID))

	return c.do(ctx, http.MethodPost, path, addSessionBody{SessionID: sessionID}, nil)
}

type runEvalBody struct {
	EvalIDs     []string `json:"evalIds"`
	EvalMetrics []string `json:"evalMetrics"`
}

type runEvalResponse struct {
	Status       string `json:"status"`
	EvalResultID string `json:"evalResultId"`
}

// RunEval starts an evaluation run over the given case IDs and returns
// the result ID to poll.
func (c *Client) RunEval(ctx context.Context, appName, evalSetID string, evalIDs, metrics []string) (string, error) {
	path := fmt.Sprintf("/apps/%s/eval_sets/%s/run_eval",
		url.PathEscape(appName), url.PathEscape(evalSetID))

	var resp runEvalResponse
	err := c.do(ctx, http.MethodPost, path, runEvalBody{EvalIDs: evalIDs, EvalMetrics: metrics}, &resp)
	if err != nil {
		return "", err
	}

	return resp.EvalResultID, nil
}

type listArtifactsResponse struct {
	Artifacts []string `json:"artifacts"`
}

// ListArtifactKeys returns the artifact names attached to a session.
func (c *Client) ListArtifactKeys(ctx context.Context, appName, userID, sessionID string) ([]string, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s/artifacts",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID))

	var resp listArtifactsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Artifacts, nil
}

// DeleteArtifact removes a named session artifact, all versions included.
func (c *Client) DeleteArtifact(ctx context.Context, appName, userID, sessionID, name string) error {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s/artifacts/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID), url.PathEscape(name))

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetArtifact returns the latest version of a named session artifact.
func (c *Client) GetArtifact(ctx context.Context, appName, userID, sessionID, name string) (*Artifact, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s/artifacts/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID), url.PathEscape(name))

	artifact := &Artifact{}
	if err := c.do(ctx, http.MethodGet, path, nil, artifact); err != nil {
		return nil, err
	}

	return artifact, nil
}

// GetArtifactVersion returns a specific version of a session artifact.
func (c *Client) GetArtifactVersion(ctx context.Context, appName, userID, sessionID, name, version string) (*Artifact, error) {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s/artifacts/%s/versions/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID),
		url.PathEscape(name), url.PathEscape(version))

	artifact := &Artifact{}
	if err := c.do(ctx, http.MethodGet, path, nil, artifact); err != nil {
		return nil, err
	}

	return artifact, nil
}

// GetEventTrace returns the debug trace for a single event.
func (c *Client) GetEventTrace(ctx context.Context, eventID string) (*EventTrace, error) {
	trace := &EventTrace{}
	if err := c.do(ctx, http.MethodGet, "/debug/trace/"+url.PathEscape(eventID), nil, trace); err != nil {
		return nil, err
	}

	return trace, nil
}

// GetSessionTrace returns the debug trace for a whole session.
func (c *Client) GetSessionTrace(ctx context.Context, sessionID string) (*SessionTrace, error) {
	trace := &SessionTrace{}
	if err := c.do(ctx, http.MethodGet, "/debug/trace/session/"+url.PathEscape(sessionID), nil, trace); err != nil {
		return nil, err
	}

	return trace, nil
}

// OpenRun starts a streaming run and returns the raw SSE response body.
// The caller owns the body and must close it, on cancellation included.
// A non-200 handshake is returned as an *APIError and the body is closed
// here.
func (c *Client) OpenRun(ctx context.Context, runReq RunRequest) (io.ReadCloser, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(runReq)
	if err != nil {
		return nil, fmt.Errorf("could not marshal run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_sse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not open run stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: decodeDetail(resp.Body)}
		resp.Body.Close()
		return nil, apiErr
	}

	return resp.Body, nil
}

// do performs a request/response call against the backend and decodes the
// JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.rest.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: decodeDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}

	return nil
}

// decodeDetail pulls the backend's error detail out of an error body.
// Returns an empty string when the body is not the expected shape.
func decodeDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return ""
	}

	return errResp.Detail
}
