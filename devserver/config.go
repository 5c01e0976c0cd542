package devserver

// DefaultApps are the app names advertised when the config does not
// provide its own list.
var DefaultApps = []string{"sample-app", "demo-agent", "test-application"}

// Config is the config for the reel dev backend.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// AgentURL is the remote agent address reported by the status and
	// config endpoints. The dev backend never dials it; scripted replies
	// stand in for a real agent.
	AgentURL string

	// Apps are the app names served by /list-apps. Empty means
	// DefaultApps.
	Apps []string

	// ScriptPath points at a TOML reply script. Empty means every run
	// echoes its prompt back. Callers that want hot reload run
	// ScriptBook.Watch themselves.
	ScriptPath string
}
