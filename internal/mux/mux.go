// Package mux abstracts terminal multiplexers (tmux, wezterm, zellij) behind
// a single capability contract.
//
// The backends differ in observability, not just syntax: tmux answers
// questions about any pane at any time, wezterm answers them via one full
// listing, and zellij can only ever observe whichever pane currently has UI
// focus. Each implementation therefore carries its own liveness policy
// instead of the callers branching on backend name.
package mux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/timvw/muxtrack/internal/model"
)

// Backend is the capability contract every multiplexer implements.
type Backend interface {
	// Name returns the backend name (e.g., "tmux", "wezterm", "zellij").
	Name() string

	// CapturePane returns a text snapshot of the pane, trimmed to the last
	// maxLines lines (maxLines <= 0 keeps the whole buffer). The second
	// return is false whenever the pane cannot be captured, for any reason,
	// including a deliberately refused self-capture. Absence is never an
	// error.
	CapturePane(ctx context.Context, paneID string, maxLines int) (string, bool)

	// LivePaneInfo returns a fresh snapshot of the pane, (nil, nil) when
	// the backend cannot currently observe it (not necessarily dead), and
	// an error only for genuine query failures.
	LivePaneInfo(ctx context.Context, paneID string) (*model.LivePaneInfo, error)

	// ValidateAgentAlive decides whether the recorded agent is still
	// running. false is a definite liveness conclusion; an error means the
	// question could not be answered and the caller must not treat the
	// agent as dead.
	ValidateAgentAlive(ctx context.Context, st model.AgentState) (bool, error)

	// WindowExists reports whether a window/tab with exactly this name
	// currently exists anywhere in the multiplexer.
	WindowExists(ctx context.Context, name string) (bool, error)

	// OwnPaneID returns the pane identifier the multiplexer assigned to
	// this process at spawn time, resolved once at construction. Empty when
	// the process is not running inside this multiplexer.
	OwnPaneID() string
}

// Sender is implemented by backends that can deliver keystrokes to an
// arbitrary pane.
type Sender interface {
	SendText(ctx context.Context, paneID, text string) error
}

// Focuser is implemented by backends that can move UI focus to an arbitrary
// pane.
type Focuser interface {
	FocusPane(ctx context.Context, paneID string) error
}

// Options configure backend construction.
type Options struct {
	// CommandTimeout bounds every subprocess call so a hung multiplexer
	// cannot freeze a poll loop. Zero leaves calls unbounded.
	CommandTimeout time.Duration
	// StaleAfter is how long a record may go without an upsert before a
	// focused-only backend declares it dead. Zero disables the staleness
	// check. Ignored by backends with process-level validation.
	StaleAfter time.Duration
}

// runner executes one multiplexer CLI invocation and returns its stdout.
// Backends hold it as a field so tests can observe and fake subprocess use.
type runner func(ctx context.Context, name string, args ...string) (string, error)

// runCommand is the real runner. Exit failures carry the command's stderr.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// defaultValidate is the liveness policy shared by backends that can query
// any pane: pane gone means dead, a different pid means the OS process was
// replaced, a changed foreground command means the agent gave way to
// something else (usually an interactive shell).
func defaultValidate(ctx context.Context, b Backend, st model.AgentState) (bool, error) {
	live, err := b.LivePaneInfo(ctx, st.Key.Pane)
	if err != nil {
		return false, err
	}
	if live == nil {
		return false, nil
	}
	if live.PID != st.PanePID {
		return false, nil
	}
	if live.Command != st.Command {
		return false, nil
	}
	return true, nil
}

// tailLines returns the last n lines of s. n <= 0 returns s unchanged.
func tailLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	trimmed := strings.TrimRight(s, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n") + "\n"
}
