package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// ScriptTurn is one scripted exchange. Match is compared
// case-insensitively as a substring of the incoming prompt.
type ScriptTurn struct {
	Match string `toml:"match"`
	Reply string `toml:"reply"`

	// Chunks optionally override how Reply is split into partial
	// events. Empty means the whole reply streams as a single partial.
	Chunks []string `toml:"chunks"`

	// DelayMS is the pause between streamed frames, in milliseconds.
	DelayMS int `toml:"delay_ms"`
}

// scriptFile is the on-disk TOML shape of a reply script.
type scriptFile struct {
	Default string       `toml:"default"`
	Turns   []ScriptTurn `toml:"turn"`
}

// ScriptBook holds the scripted replies for the dev backend and
// supports live reloads while the server is running.
type ScriptBook struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	script scriptFile
}

// LoadScriptBook reads a TOML reply script from path.
func LoadScriptBook(path string, logger *slog.Logger) (*ScriptBook, error) {
	book := &ScriptBook{
		path:   path,
		logger: logger,
	}
	if err := book.Reload(); err != nil {
		return nil, err
	}

	return book, nil
}

// Reload re-reads the script file, replacing the current turns. The old
// script stays active if the file has become unreadable or invalid.
func (b *ScriptBook) Reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("reading reply script: %w", err)
	}

	var script scriptFile
	if err := toml.Unmarshal(data, &script); err != nil {
		return fmt.Errorf("parsing reply script: %w", err)
	}

	b.mu.Lock()
	b.script = script
	b.mu.Unlock()

	return nil
}

// Resolve picks the scripted turn for a prompt. The first turn whose
// match is a case-insensitive substring of the prompt wins; otherwise
// the script's default reply is returned. The second return reports
// whether anything in the script applied.
func (b *ScriptBook) Resolve(prompt string) (ScriptTurn, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lowered := strings.ToLower(prompt)
	for _, turn := range b.script.Turns {
		if turn.Match == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(turn.Match)) {
			return turn, true
		}
	}

	if b.script.Default != "" {
		return ScriptTurn{Reply: b.script.Default}, true
	}

	return ScriptTurn{}, false
}

// Turns returns how many scripted turns are currently loaded.
func (b *ScriptBook) Turns() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.script.Turns)
}

// Watch blocks reloading the script whenever the file is rewritten,
// until ctx is cancelled. Editors replace files rather than write in
// place, so the watch is on the parent directory and events for other
// files are skipped.
func (b *ScriptBook) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating script watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		return fmt.Errorf("watching script dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(b.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := b.Reload(); err != nil {
				b.logger.Warn("could not reload reply script", "path", b.path, "error", err)
				continue
			}
			b.logger.Info("reloaded reply script", "path", b.path, "turns", b.Turns())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("script watcher: %w", err)
		}
	}
}
