package mux

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/timvw/muxtrack/internal/model"
)

// tmuxInfoFormat asks display-message for every field LivePaneInfo carries,
// tab-separated. pane_current_command is the foreground process name, which
// is what liveness comparison wants.
const tmuxInfoFormat = "#{pane_pid}\t#{pane_current_command}\t#{pane_current_path}\t#{pane_title}\t#{session_name}\t#{window_name}"

// Tmux is the full-random-access backend: any pane can be queried, captured,
// focused, or written to at any time.
type Tmux struct {
	run     runner
	timeout time.Duration
	ownPane string
}

// NewTmux creates the tmux backend. The process's own pane id comes from
// $TMUX_PANE, set by tmux at spawn time.
func NewTmux(opts Options) *Tmux {
	return &Tmux{
		run:     runCommand,
		timeout: opts.CommandTimeout,
		ownPane: os.Getenv("TMUX_PANE"),
	}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// OwnPaneID returns the pane id this process was spawned into, or "" when
// not running inside tmux.
func (t *Tmux) OwnPaneID() string {
	return t.ownPane
}

// CapturePane captures the pane's content. The -S bound keeps tmux from
// shipping the entire scrollback when only a preview is wanted.
func (t *Tmux) CapturePane(ctx context.Context, paneID string, maxLines int) (string, bool) {
	args := []string{"capture-pane", "-p", "-J", "-t", paneID}
	if maxLines > 0 {
		args = append(args, "-S", fmt.Sprintf("-%d", maxLines))
	} else {
		args = append(args, "-S", "-")
	}
	out, err := t.exec(ctx, args...)
	if err != nil {
		return "", false
	}
	return tailLines(out, maxLines), true
}

// LivePaneInfo queries one pane directly. A target tmux cannot find is an
// observability gap (the pane is gone), not a failure; anything else
// (no server, timeout, unparseable output) is a genuine query failure.
func (t *Tmux) LivePaneInfo(ctx context.Context, paneID string) (*model.LivePaneInfo, error) {
	out, err := t.exec(ctx, "display-message", "-p", "-t", paneID, tmuxInfoFormat)
	if err != nil {
		if isMissingTarget(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tmux display-message: %w", err)
	}

	parts := strings.Split(strings.TrimRight(out, "\n"), "\t")
	if len(parts) < 6 {
		return nil, fmt.Errorf("tmux display-message: unexpected output %q", strings.TrimSpace(out))
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("tmux display-message: bad pid %q", parts[0])
	}

	return &model.LivePaneInfo{
		PID:     pid,
		Command: parts[1],
		WorkDir: parts[2],
		Title:   parts[3],
		Session: parts[4],
		Window:  parts[5],
	}, nil
}

// ValidateAgentAlive applies the default process-level policy: pane
// existence, then pid, then foreground command.
func (t *Tmux) ValidateAgentAlive(ctx context.Context, st model.AgentState) (bool, error) {
	return defaultValidate(ctx, t, st)
}

// WindowExists scans window names across every session.
func (t *Tmux) WindowExists(ctx context.Context, name string) (bool, error) {
	out, err := t.exec(ctx, "list-windows", "-a", "-F", "#{window_name}")
	if err != nil {
		return false, fmt.Errorf("tmux list-windows: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if line == name {
			return true, nil
		}
	}
	return false, nil
}

// SendText delivers text to a pane. Control sequences ("Enter", "C-c", ...)
// are sent as key names; everything else goes in literal mode followed by
// Enter so the receiving program sees a submitted line.
func (t *Tmux) SendText(ctx context.Context, paneID, text string) error {
	if isControlSequence(text) {
		if _, err := t.exec(ctx, "send-keys", "-t", paneID, text); err != nil {
			return fmt.Errorf("tmux send-keys: %w", err)
		}
		return nil
	}
	if _, err := t.exec(ctx, "send-keys", "-t", paneID, "-l", text); err != nil {
		return fmt.Errorf("tmux send-keys: %w", err)
	}
	if _, err := t.exec(ctx, "send-keys", "-t", paneID, "Enter"); err != nil {
		return fmt.Errorf("tmux send-keys: %w", err)
	}
	return nil
}

// FocusPane switches the attached client to the pane.
func (t *Tmux) FocusPane(ctx context.Context, paneID string) error {
	if _, err := t.exec(ctx, "switch-client", "-t", paneID); err != nil {
		return fmt.Errorf("tmux switch-client: %w", err)
	}
	return nil
}

// exec runs one tmux command under the configured timeout.
func (t *Tmux) exec(ctx context.Context, args ...string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.run(ctx, "tmux", args...)
}

// isMissingTarget recognizes tmux's "can't find pane/window/session" exit
// errors, which mean the target is gone rather than that tmux failed.
func isMissingTarget(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "can't find")
}

// isControlSequence reports whether text names a tmux key rather than
// literal characters to type.
func isControlSequence(text string) bool {
	switch text {
	case "Enter", "Escape", "Up", "Down", "Left", "Right",
		"Tab", "BTab", "Space", "BSpace", "DC":
		return true
	}
	if len(text) == 3 && (text[0] == 'C' || text[0] == 'M') && text[1] == '-' {
		return true
	}
	return false
}
