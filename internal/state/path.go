package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDir returns the directory agent records live in when no explicit
// override is configured: $XDG_STATE_HOME/muxtrack/agents, falling back to
// ~/.local/state/muxtrack/agents.
func DefaultDir() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "muxtrack", "agents")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), fmt.Sprintf("muxtrack-%d", os.Getuid()), "agents")
	}
	return filepath.Join(home, ".local", "state", "muxtrack", "agents")
}
