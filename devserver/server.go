// Package devserver provides a self-contained stand-in for an agent
// backend, used to develop and test reel clients without running real
// agent infrastructure. It serves the same HTTP surface the reel client
// speaks (sessions, evals, artifacts, debug traces, streaming runs) and
// answers runs from a scripted reply book instead of a model.
package devserver

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/state"
	"github.com/papercomputeco/reel/pkg/store"
)

// devFrontendOrigin is the dev web UI origin allowed through CORS.
const devFrontendOrigin = "http://localhost:4200"

// Server is the reel dev backend server.
type Server struct {
	config Config
	store  store.Driver
	logger *slog.Logger
	app    *fiber.App
	script *ScriptBook

	// agentURL is shared observable state: the PUT handler writes it
	// while runs read it, so it lives in a cell rather than a field.
	agentURL *state.Cell[string]

	evalMu   sync.RWMutex
	evalSets map[string]*evalSet

	artMu     sync.RWMutex
	artifacts map[string]*agent.Artifact
}

// evalSet is an in-memory eval set. Eval sets are dev fixtures and do
// not survive a restart.
type evalSet struct {
	ID    string
	Name  string
	Cases []agent.EvalCase
}

// NewServer creates a dev backend server with the provided config.
func NewServer(config Config, storer store.Driver, log *slog.Logger) (*Server, error) {
	if storer == nil {
		return nil, errors.New("store driver is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if len(config.Apps) == 0 {
		config.Apps = DefaultApps
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		store:     storer,
		logger:    log,
		app:       app,
		agentURL:  state.NewCell(config.AgentURL),
		evalSets:  make(map[string]*evalSet),
		artifacts: make(map[string]*agent.Artifact),
	}
	s.agentURL.Subscribe(func(url string) {
		log.Info("agent url updated", "url", url)
	})

	if config.ScriptPath != "" {
		script, err := LoadScriptBook(config.ScriptPath, log)
		if err != nil {
			return nil, err
		}
		s.script = script
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     devFrontendOrigin,
		AllowCredentials: true,
	}))

	app.Get("/", s.handleStatus)
	app.Get("/list-apps", s.handleListApps)
	app.Get("/config/agent-url", s.handleGetAgentURL)
	app.Put("/config/agent-url", s.handleSetAgentURL)

	app.Post("/run_sse", s.handleRunSSE)

	app.Post("/apps/:app/users/:user/sessions", s.handleCreateSession)
	app.Get("/apps/:app/users/:user/sessions", s.handleListSessions)
	app.Get("/apps/:app/users/:user/sessions/:session", s.handleGetSession)
	app.Delete("/apps/:app/users/:user/sessions/:session", s.handleDeleteSession)

	app.Get("/apps/:app/eval_sets", s.handleListEvalSets)
	app.Post("/apps/:app/eval_sets/:set", s.handleCreateEvalSet)
	app.Get("/apps/:app/eval_sets/:set/evals", s.handleListEvalCases)
	app.Post("/apps/:app/eval_sets/:set/add_session", s.handleAddSessionToEvalSet)
	app.Post("/apps/:app/eval_sets/:set/run_eval", s.handleRunEval)
	app.Get("/apps/:app/eval_results", s.handleListEvalResults)
	app.Get("/apps/:app/eval_results/:result", s.handleGetEvalResult)

	app.Get("/apps/:app/users/:user/sessions/:session/events/:event/graph", s.handleEventGraph)
	app.Get("/apps/:app/users/:user/sessions/:session/artifacts", s.handleListArtifacts)
	app.Get("/apps/:app/users/:user/sessions/:session/artifacts/:name", s.handleGetArtifact)
	app.Delete("/apps/:app/users/:user/sessions/:session/artifacts/:name", s.handleDeleteArtifact)
	app.Get("/apps/:app/users/:user/sessions/:session/artifacts/:name/versions/:version", s.handleGetArtifactVersion)

	app.Get("/debug/trace/session/:session", s.handleSessionTrace)
	app.Get("/debug/trace/:event", s.handleEventTrace)

	app.All("/mcp", adaptor.HTTPHandler(s.newMCPHandler()))

	return s, nil
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	s.logger.Info("starting dev backend", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server on an existing listener, for callers
// that need the bound address before serving starts.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting dev backend", "listen", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Script returns the loaded reply script, or nil when running in echo
// mode.
func (s *Server) Script() *ScriptBook {
	return s.script
}

// AgentURL returns the currently configured remote agent URL.
func (s *Server) AgentURL() string {
	return s.agentURL.Get()
}

func (s *Server) setAgentURL(url string) {
	s.agentURL.Set(url)
}

// scriptedTurn picks the reply for a prompt, falling back to a plain
// echo when no script is loaded or nothing in it matches.
func (s *Server) scriptedTurn(prompt string) ScriptTurn {
	if s.script != nil {
		if turn, ok := s.script.Resolve(prompt); ok {
			return turn
		}
	}

	return ScriptTurn{Reply: "You said: " + prompt}
}
