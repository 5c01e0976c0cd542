package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/sse"
	"github.com/papercomputeco/reel/pkg/store/inmemory"
)

// testRequest runs one request through the fiber app without binding a
// port.
func testRequest(s *Server, method, target string, body []byte) *http.Response {
	GinkgoHelper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())

	return resp
}

func decodeJSON(resp *http.Response, out any) {
	GinkgoHelper()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.Body.Close()).To(Succeed())
	Expect(json.Unmarshal(data, out)).To(Succeed(), "body: %s", string(data))
}

func runRequestBody(appName, userID, sessionID, text string) []byte {
	GinkgoHelper()

	payload, err := json.Marshal(agent.RunRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		NewMessage: agent.Content{
			Role:  agent.RoleUser,
			Parts: []agent.Part{{Text: text}},
		},
		Streaming: true,
	})
	Expect(err).NotTo(HaveOccurred())

	return payload
}

// decodeRunFrames parses a fully buffered SSE response body back into
// events, through the same splitter and frame parser real clients use.
func decodeRunFrames(body []byte) []*agent.Event {
	GinkgoHelper()

	splitter := sse.NewSplitter()
	var events []*agent.Event
	for _, line := range splitter.Process(string(body)) {
		frame := sse.ParseFrame(line)
		if !frame.Data {
			continue
		}

		event, err := agent.ParseEvent(frame.Payload)
		Expect(err).NotTo(HaveOccurred())
		events = append(events, event)
	}

	return events
}

var _ = Describe("NewServer", func() {
	It("requires a store driver", func() {
		_, err := NewServer(Config{}, nil, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("store driver is required")))
	})

	It("falls back to the default app list", func() {
		s, err := NewServer(Config{}, inmemory.NewDriver(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.config.Apps).To(Equal(DefaultApps))
	})

	It("errors when the reply script cannot be loaded", func() {
		_, err := NewServer(Config{
			ScriptPath: filepath.Join(GinkgoT().TempDir(), "missing.toml"),
		}, inmemory.NewDriver(), logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("reading reply script")))
	})
})

var _ = Describe("Server", func() {
	var (
		s   *Server
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		s, err = NewServer(Config{
			AgentURL: "http://localhost:9001",
		}, inmemory.NewDriver(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("status and config", func() {
		It("reports the backend as running", func() {
			resp := testRequest(s, http.MethodGet, "/", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var status agent.ServerStatus
			decodeJSON(resp, &status)
			Expect(status.Status).To(Equal("running"))
			Expect(status.RemoteAgent).To(Equal("http://localhost:9001"))
		})

		It("lists the configured apps", func() {
			resp := testRequest(s, http.MethodGet, "/list-apps", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var apps []string
			decodeJSON(resp, &apps)
			Expect(apps).To(Equal(DefaultApps))
		})

		It("updates the remote agent url", func() {
			resp := testRequest(s, http.MethodPut, "/config/agent-url", []byte(`{"url":"http://localhost:9999"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var updated struct {
				Status string `json:"status"`
				URL    string `json:"remote_agent_url"`
			}
			decodeJSON(resp, &updated)
			Expect(updated.Status).To(Equal("updated"))
			Expect(updated.URL).To(Equal("http://localhost:9999"))

			resp = testRequest(s, http.MethodGet, "/config/agent-url", nil)
			var current struct {
				URL string `json:"remote_agent_url"`
			}
			decodeJSON(resp, &current)
			Expect(current.URL).To(Equal("http://localhost:9999"))
		})

		It("rejects an empty agent url", func() {
			resp := testRequest(s, http.MethodPut, "/config/agent-url", []byte(`{}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("URL is required"))
		})
	})

	Describe("sessions", func() {
		createSession := func(appName, userID string) string {
			GinkgoHelper()

			resp := testRequest(s, http.MethodPost, "/apps/"+appName+"/users/"+userID+"/sessions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var created struct {
				SessionID string `json:"sessionId"`
				Status    string `json:"status"`
			}
			decodeJSON(resp, &created)
			Expect(created.Status).To(Equal("created"))
			Expect(created.SessionID).NotTo(BeEmpty())

			return created.SessionID
		}

		It("creates and fetches a session", func() {
			id := createSession("demo", "alice")

			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var session agent.Session
			decodeJSON(resp, &session)
			Expect(session.ID).To(Equal(id))
			Expect(session.AppName).To(Equal("demo"))
			Expect(session.UserID).To(Equal("alice"))
			Expect(session.Events).To(BeEmpty())
		})

		It("lists sessions scoped to the app and user", func() {
			createSession("demo", "alice")
			createSession("demo", "alice")
			createSession("demo", "bob")

			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var listed struct {
				Sessions []*agent.Session `json:"sessions"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.Sessions).To(HaveLen(2))
		})

		It("hands a fresh session to placeholder ids", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/undefined", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var session agent.Session
			decodeJSON(resp, &session)
			Expect(session.ID).NotTo(BeEmpty())
			Expect(session.ID).NotTo(Equal("undefined"))
			Expect(session.AppName).To(Equal("demo"))

			stored, err := s.store.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UserID).To(Equal("alice"))
		})

		It("404s unknown sessions", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("Session not found"))
		})

		It("denies access across apps and users", func() {
			id := createSession("demo", "alice")

			resp := testRequest(s, http.MethodGet, "/apps/other/users/alice/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			resp = testRequest(s, http.MethodDelete, "/apps/demo/users/bob/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("Access denied"))
		})

		It("deletes a session", func() {
			id := createSession("demo", "alice")

			resp := testRequest(s, http.MethodDelete, "/apps/demo/users/alice/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var deleted struct {
				Status string `json:"status"`
			}
			decodeJSON(resp, &deleted)
			Expect(deleted.Status).To(Equal("deleted"))

			resp = testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("eval sets", func() {
		It("creates and lists eval sets", func() {
			resp := testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var created struct {
				Status    string `json:"status"`
				EvalSetID string `json:"evalSetId"`
			}
			decodeJSON(resp, &created)
			Expect(created.Status).To(Equal("created"))
			Expect(created.EvalSetID).To(Equal("regression"))

			resp = testRequest(s, http.MethodGet, "/apps/demo/eval_sets", nil)
			var listed struct {
				EvalSets []agent.EvalSetSummary `json:"evalSets"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.EvalSets).To(HaveLen(1))
			Expect(listed.EvalSets[0].ID).To(Equal("regression"))
			Expect(listed.EvalSets[0].CaseCount).To(BeZero())
		})

		It("rejects duplicate eval sets", func() {
			testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)

			resp := testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("404s cases of an unknown eval set", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/eval_sets/missing/evals", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("Eval set not found"))
		})

		It("snapshots a session transcript into an eval case", func() {
			session := &agent.Session{ID: "sess-eval", AppName: "demo", UserID: "alice", CreatedAt: time.Now().UTC()}
			Expect(s.store.CreateSession(ctx, session)).To(Succeed())
			Expect(s.store.AppendEvent(ctx, "sess-eval", &agent.SessionEvent{
				ID:        "ev-1",
				Timestamp: time.Now().UTC(),
				Type:      agent.EventTypeUserMessage,
				Role:      agent.RoleUser,
				Content:   agent.Content{Role: agent.RoleUser, Parts: []agent.Part{{Text: "hi"}}},
				SessionID: "sess-eval",
			})).To(Succeed())
			Expect(s.store.AppendEvent(ctx, "sess-eval", &agent.SessionEvent{
				ID:        "ev-2",
				Timestamp: time.Now().UTC(),
				Type:      agent.EventTypeAgentResponse,
				Role:      agent.RoleAssistant,
				Content:   agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: "hello"}}},
				SessionID: "sess-eval",
			})).To(Succeed())

			testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)

			resp := testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression/add_session", []byte(`{"sessionId":"sess-eval"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = testRequest(s, http.MethodGet, "/apps/demo/eval_sets/regression/evals", nil)
			var listed struct {
				Cases []agent.EvalCase `json:"cases"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.Cases).To(HaveLen(1))
			Expect(listed.Cases[0].Conversation).To(HaveLen(2))
			Expect(listed.Cases[0].Conversation[0]).To(HaveKeyWithValue("text", "hi"))
			Expect(listed.Cases[0].SessionInput).To(HaveKeyWithValue("appName", "demo"))
		})

		It("requires a session id when adding to an eval set", func() {
			testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)

			resp := testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression/add_session", []byte(`{}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("starts a simulated eval run", func() {
			testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression", nil)

			resp := testRequest(s, http.MethodPost, "/apps/demo/eval_sets/regression/run_eval", []byte(`{"evalIds":[],"evalMetrics":[]}`))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var run struct {
				Status       string `json:"status"`
				EvalResultID string `json:"evalResultId"`
			}
			decodeJSON(resp, &run)
			Expect(run.Status).To(Equal("started"))
			Expect(run.EvalResultID).NotTo(BeEmpty())
		})

		It("serves eval results", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/eval_results", nil)
			var listed struct {
				Results []any `json:"results"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.Results).To(BeEmpty())

			resp = testRequest(s, http.MethodGet, "/apps/demo/eval_results/run-1", nil)
			var result struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			}
			decodeJSON(resp, &result)
			Expect(result.ID).To(Equal("run-1"))
			Expect(result.Status).To(Equal("completed"))
		})
	})

	Describe("artifacts", func() {
		It("mints a sample artifact on first fetch and keeps it", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var first agent.Artifact
			decodeJSON(resp, &first)
			Expect(first.Name).To(Equal("report.md"))
			Expect(first.Version).To(Equal("1.0"))

			resp = testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)
			var second agent.Artifact
			decodeJSON(resp, &second)
			Expect(second.ID).To(Equal(first.ID))

			resp = testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts", nil)
			var listed struct {
				Artifacts []string `json:"artifacts"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.Artifacts).To(Equal([]string{"report.md"}))
		})

		It("scopes artifact listings to the session", func() {
			testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)

			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-2/artifacts", nil)
			var listed struct {
				Artifacts []string `json:"artifacts"`
			}
			decodeJSON(resp, &listed)
			Expect(listed.Artifacts).To(BeEmpty())
		})

		It("serves specific artifact versions", func() {
			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md/versions/2", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var artifact agent.Artifact
			decodeJSON(resp, &artifact)
			Expect(artifact.Version).To(Equal("2"))
			Expect(artifact.Content).To(HaveKeyWithValue("data", "Version 2 of report.md"))
		})

		It("deletes artifacts", func() {
			testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)

			resp := testRequest(s, http.MethodDelete, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = testRequest(s, http.MethodDelete, "/apps/demo/users/alice/sessions/sess-1/artifacts/report.md", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("Artifact not found"))
		})
	})

	Describe("debug traces", func() {
		It("serves an empty event trace", func() {
			resp := testRequest(s, http.MethodGet, "/debug/trace/ev-123", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var trace agent.EventTrace
			decodeJSON(resp, &trace)
			Expect(trace.TraceID).To(Equal("ev-123"))
			Expect(trace.Events).To(BeEmpty())
		})

		It("explains placeholder session traces", func() {
			resp := testRequest(s, http.MethodGet, "/debug/trace/session/undefined", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var trace agent.SessionTrace
			decodeJSON(resp, &trace)
			Expect(trace.Message).To(Equal("No trace available for undefined session"))
		})

		It("summarizes a session's transcript", func() {
			session := &agent.Session{ID: "sess-trace", AppName: "demo", UserID: "alice", CreatedAt: time.Now().UTC()}
			Expect(s.store.CreateSession(ctx, session)).To(Succeed())
			for i, role := range []string{agent.RoleUser, agent.RoleAssistant, agent.RoleUser} {
				Expect(s.store.AppendEvent(ctx, "sess-trace", &agent.SessionEvent{
					ID:        "ev-" + string(rune('a'+i)),
					Timestamp: time.Now().UTC(),
					Role:      role,
					Content:   agent.Content{Role: role, Parts: []agent.Part{{Text: "x"}}},
					SessionID: "sess-trace",
				})).To(Succeed())
			}

			resp := testRequest(s, http.MethodGet, "/debug/trace/session/sess-trace", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var trace agent.SessionTrace
			decodeJSON(resp, &trace)
			Expect(trace.Trace).To(HaveLen(3))
			Expect(trace.Performance.TotalEvents).To(Equal(3))
			Expect(trace.Performance.UserMessages).To(Equal(2))
			Expect(trace.Performance.AgentMessages).To(Equal(1))
		})

		It("returns an empty trace for unknown sessions", func() {
			resp := testRequest(s, http.MethodGet, "/debug/trace/session/nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var trace agent.SessionTrace
			decodeJSON(resp, &trace)
			Expect(trace.Trace).To(BeEmpty())
			Expect(trace.Performance.TotalEvents).To(BeZero())
		})
	})

	Describe("event graphs", func() {
		It("renders the transcript as a DOT chain", func() {
			session := &agent.Session{ID: "sess-graph", AppName: "demo", UserID: "alice", CreatedAt: time.Now().UTC()}
			Expect(s.store.CreateSession(ctx, session)).To(Succeed())
			Expect(s.store.AppendEvent(ctx, "sess-graph", &agent.SessionEvent{
				ID: "ev-1", Type: agent.EventTypeUserMessage, Role: agent.RoleUser,
				Content: agent.Content{Parts: []agent.Part{{Text: "hi"}}}, SessionID: "sess-graph",
			})).To(Succeed())
			Expect(s.store.AppendEvent(ctx, "sess-graph", &agent.SessionEvent{
				ID: "ev-2", Type: agent.EventTypeAgentResponse, Role: agent.RoleAssistant,
				Content: agent.Content{Parts: []agent.Part{{Text: "hello"}}}, SessionID: "sess-graph",
			})).To(Succeed())

			resp := testRequest(s, http.MethodGet, "/apps/demo/users/alice/sessions/sess-graph/events/ev-2/graph", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var graph struct {
				DotSrc string `json:"dotSrc"`
			}
			decodeJSON(resp, &graph)
			Expect(graph.DotSrc).To(ContainSubstring("digraph session"))
			Expect(graph.DotSrc).To(ContainSubstring("n0 -> n1"))
			Expect(graph.DotSrc).To(ContainSubstring("style=filled"))
		})
	})

	Describe("run_sse", func() {
		It("rejects an unparsable body", func() {
			resp := testRequest(s, http.MethodPost, "/run_sse", []byte(`{not json`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("requires message text", func() {
			resp := testRequest(s, http.MethodPost, "/run_sse", runRequestBody("demo", "alice", "sess-1", ""))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp agent.ErrorResponse
			decodeJSON(resp, &errResp)
			Expect(errResp.Detail).To(Equal("Message text is required"))
		})

		It("streams an echo run and records the transcript", func() {
			resp := testRequest(s, http.MethodPost, "/run_sse", runRequestBody("demo", "alice", "sess-run", "hi there"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Body.Close()).To(Succeed())

			events := decodeRunFrames(body)
			Expect(len(events)).To(BeNumerically(">=", 3))

			Expect(events[0].Partial).To(BeTrue())
			Expect(events[0].Text()).To(BeEmpty())

			final := events[len(events)-1]
			Expect(final.Partial).To(BeFalse())
			Expect(final.Text()).To(Equal("You said: hi there"))
			Expect(final.Author).To(Equal("demo"))

			session, err := s.store.GetSession(ctx, "sess-run")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Events).To(HaveLen(2))
			Expect(session.Events[0].Type).To(Equal(agent.EventTypeUserMessage))
			Expect(session.Events[0].Content.Text()).To(Equal("hi there"))
			Expect(session.Events[1].Type).To(Equal(agent.EventTypeAgentResponse))
			Expect(session.Events[1].Content.Text()).To(Equal("You said: hi there"))
			Expect(session.Events[1].Raw).NotTo(BeEmpty())
			Expect(session.State).To(HaveKeyWithValue("lastAgentResponse", "You said: hi there"))
		})

		It("mints a session when the request names none", func() {
			resp := testRequest(s, http.MethodPost, "/run_sse", runRequestBody("demo", "alice", "", "hello"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Body.Close()).To(Succeed())

			sessions, err := s.store.ListSessions(ctx, "demo", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(1))
			Expect(sessions[0].EventCount).To(Equal(2))
		})
	})

	Describe("MCP tools", func() {
		It("lists apps", func() {
			result, output, err := s.handleMCPListApps(ctx, nil, ListAppsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Apps).To(Equal(DefaultApps))
		})

		It("requires a message to run the agent", func() {
			result, _, err := s.handleMCPRunAgent(ctx, nil, RunAgentInput{App: "demo", UserID: "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("runs a scripted exchange and records it", func() {
			result, output, err := s.handleMCPRunAgent(ctx, nil, RunAgentInput{
				App:     "demo",
				UserID:  "alice",
				Message: "ping",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Reply).To(Equal("You said: ping"))
			Expect(output.SessionID).NotTo(BeEmpty())

			session, err := s.store.GetSession(ctx, output.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Events).To(HaveLen(2))
		})

		It("fetches a session transcript", func() {
			_, run, err := s.handleMCPRunAgent(ctx, nil, RunAgentInput{App: "demo", UserID: "alice", Message: "ping"})
			Expect(err).NotTo(HaveOccurred())

			result, output, err := s.handleMCPGetSession(ctx, nil, GetSessionInput{SessionID: run.SessionID})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Session.Events).To(HaveLen(2))
		})

		It("flags unknown sessions", func() {
			result, _, err := s.handleMCPGetSession(ctx, nil, GetSessionInput{SessionID: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})
})

var _ = Describe("Scripted runs", func() {
	var s *Server

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "replies.toml")
		script := `default = "I do not know that one."

[[turn]]
match = "weather"
reply = "It is sunny in the sandbox."
chunks = ["It is sunny ", "in the sandbox."]
`
		Expect(os.WriteFile(path, []byte(script), 0o644)).To(Succeed())

		var err error
		s, err = NewServer(Config{ScriptPath: path}, inmemory.NewDriver(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("streams the matched turn in its scripted chunks", func() {
		resp := testRequest(s, http.MethodPost, "/run_sse", runRequestBody("demo", "alice", "sess-1", "What is the WEATHER like?"))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())

		events := decodeRunFrames(body)
		Expect(events).To(HaveLen(4))
		Expect(events[1].Text()).To(Equal("It is sunny "))
		Expect(events[2].Text()).To(Equal("in the sandbox."))
		Expect(events[3].Partial).To(BeFalse())
		Expect(events[3].Text()).To(Equal("It is sunny in the sandbox."))
	})

	It("falls back to the scripted default", func() {
		resp := testRequest(s, http.MethodPost, "/run_sse", runRequestBody("demo", "alice", "sess-2", "something else"))
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())

		events := decodeRunFrames(body)
		final := events[len(events)-1]
		Expect(final.Text()).To(Equal("I do not know that one."))
	})
})

var _ = Describe("Serving a streaming client", func() {
	var (
		s       *Server
		baseURL string
	)

	BeforeEach(func() {
		var err error
		s, err = NewServer(Config{}, inmemory.NewDriver(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		baseURL = "http://" + ln.Addr().String()

		go func() {
			defer GinkgoRecover()
			Expect(s.RunWithListener(ln)).To(Succeed())
		}()
	})

	AfterEach(func() {
		Expect(s.Shutdown()).To(Succeed())
	})

	It("carries a full client conversation over real HTTP", func() {
		ctx := context.Background()
		client := agent.NewClient(agent.Config{BaseURL: baseURL})

		Eventually(func() error {
			_, err := client.Status(ctx)
			return err
		}).Should(Succeed())

		sessionID, err := client.CreateSession(ctx, "demo", "alice")
		Expect(err).NotTo(HaveOccurred())

		body, err := client.OpenRun(ctx, agent.RunRequest{
			AppName:   "demo",
			UserID:    "alice",
			SessionID: sessionID,
			NewMessage: agent.Content{
				Role:  agent.RoleUser,
				Parts: []agent.Part{{Text: "hello out there"}},
			},
			Streaming: true,
		})
		Expect(err).NotTo(HaveOccurred())

		raw, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(body.Close()).To(Succeed())

		events := decodeRunFrames(raw)
		Expect(events).NotTo(BeEmpty())
		Expect(events[len(events)-1].Text()).To(Equal("You said: hello out there"))

		session, err := client.GetSession(ctx, "demo", "alice", sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Events).To(HaveLen(2))

		Expect(client.DeleteSession(ctx, "demo", "alice", sessionID)).To(Succeed())
	})
})
