package mux

import (
	"fmt"
	"os"
	"os/exec"
)

// Detect auto-detects the multiplexer this process is running inside.
// Environment variables are checked first (each multiplexer marks its
// children), then PATH probes for a reachable server.
func Detect(opts Options) (Backend, error) {
	if os.Getenv("TMUX") != "" {
		return NewTmux(opts), nil
	}
	if os.Getenv("ZELLIJ") != "" {
		return NewZellij(opts), nil
	}
	if os.Getenv("WEZTERM_PANE") != "" || os.Getenv("WEZTERM_UNIX_SOCKET") != "" {
		return NewWezTerm(opts), nil
	}

	if path, err := exec.LookPath("tmux"); err == nil && path != "" {
		if exec.Command("tmux", "list-sessions").Run() == nil {
			return NewTmux(opts), nil
		}
	}
	if path, err := exec.LookPath("wezterm"); err == nil && path != "" {
		if exec.Command("wezterm", "cli", "list").Run() == nil {
			return NewWezTerm(opts), nil
		}
	}

	return nil, fmt.Errorf("no supported terminal multiplexer detected (set $TMUX, $ZELLIJ, or $WEZTERM_PANE)")
}

// FromName creates a backend by name.
func FromName(name string, opts Options) (Backend, error) {
	switch name {
	case "tmux":
		return NewTmux(opts), nil
	case "wezterm":
		return NewWezTerm(opts), nil
	case "zellij":
		return NewZellij(opts), nil
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux, wezterm, zellij)", name)
	}
}

// All returns every backend keyed by name. Reconciliation uses this map so
// records survive across whichever multiplexer the current process happens
// to run inside; a backend whose binary is absent simply fails its queries,
// which reconciliation treats as "keep".
func All(opts Options) map[string]Backend {
	return map[string]Backend{
		"tmux":    NewTmux(opts),
		"wezterm": NewWezTerm(opts),
		"zellij":  NewZellij(opts),
	}
}
