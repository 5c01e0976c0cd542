package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath locates an existing local transcript database. The override
// wins when set, then the REEL_SQLITE and REEL_DB environment variables,
// then well-known file locations.
func ResolvePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("REEL_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("REEL_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range pathCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find reel transcript database; pass --sqlite")
}

// DefaultPath returns the transcript database path under the given
// directory, for callers creating a fresh store.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "reel.db")
}

func pathCandidates() []string {
	candidates := []string{
		"reel.db",
		"reel.sqlite",
		filepath.Join(".reel", "reel.db"),
		filepath.Join(".reel", "reel.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".reel", "reel.db"),
			filepath.Join(home, ".reel", "reel.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "reel", "reel.db"),
			filepath.Join(xdgHome, "reel", "reel.sqlite"),
		}, candidates...)
	}

	return candidates
}
