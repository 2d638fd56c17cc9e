package mux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timvw/muxtrack/internal/model"
)

// Zellij is the focused-only backend. There is no "query pane X": dump-screen
// writes whatever pane currently has UI focus, and list-clients enumerates,
// in practice, only the focused pane. Liveness therefore cannot be judged at
// the process level for unfocused panes and falls back to tab existence plus
// record staleness.
//
// The focus restriction creates the self-capture hazard: a dashboard running
// inside zellij that asks to capture its own pane would dump its own rendered
// frame, which becomes the next preview, which gets captured again, growing
// without bound. CapturePane refuses that case up front.
type Zellij struct {
	run        runner
	timeout    time.Duration
	staleAfter time.Duration
	ownPane    string
	session    string
	scratchDir string
	now        func() time.Time
	getwd      func() (string, error)
}

// NewZellij creates the zellij backend. The process's own pane id and
// session name come from $ZELLIJ_PANE_ID and $ZELLIJ_SESSION_NAME, both set
// by zellij at spawn time and immutable for the life of the process.
func NewZellij(opts Options) *Zellij {
	return &Zellij{
		run:        runCommand,
		timeout:    opts.CommandTimeout,
		staleAfter: opts.StaleAfter,
		ownPane:    os.Getenv("ZELLIJ_PANE_ID"),
		session:    os.Getenv("ZELLIJ_SESSION_NAME"),
		scratchDir: os.TempDir(),
		now:        time.Now,
		getwd:      os.Getwd,
	}
}

// Name returns "zellij".
func (z *Zellij) Name() string {
	return "zellij"
}

// OwnPaneID returns the pane id this process was spawned into, or "" when
// not running inside zellij.
func (z *Zellij) OwnPaneID() string {
	return z.ownPane
}

// CapturePane captures the focused pane when, and only when, it is the
// requested one.
//
// The self-capture check runs before any subprocess: requesting our own pane
// must return nothing without touching zellij at all. A request for any
// other pane is answerable only while that pane holds focus; otherwise the
// dump would show the wrong pane, so absence is returned instead. The dump
// goes through a scratch file that is removed on every exit path.
func (z *Zellij) CapturePane(ctx context.Context, paneID string, maxLines int) (string, bool) {
	if z.ownPane != "" && paneID == z.ownPane {
		return "", false
	}

	focused, _, err := z.focusedClient(ctx)
	if err != nil || focused != paneID {
		return "", false
	}

	scratch, err := os.CreateTemp(z.scratchDir, "muxtrack-capture-*.txt")
	if err != nil {
		return "", false
	}
	path := scratch.Name()
	scratch.Close()
	defer os.Remove(path)

	if _, err := z.exec(ctx, "action", "dump-screen", path); err != nil {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return tailLines(string(data), maxLines), true
}

// LivePaneInfo reports what little zellij exposes. When the requested pane
// holds focus, the running command comes from list-clients; for any other
// pane only locally-knowable facts are returned (pid 0, empty command, this
// process's working directory) so the status-report path can still write a
// record for unfocused agents. Precision returns the next time the pane is
// focused. Errors are reserved for list-clients itself failing.
func (z *Zellij) LivePaneInfo(ctx context.Context, paneID string) (*model.LivePaneInfo, error) {
	focused, command, err := z.focusedClient(ctx)
	if err != nil {
		return nil, err
	}

	wd, _ := z.getwd()
	info := &model.LivePaneInfo{
		PID:     0,
		WorkDir: wd,
		Session: z.session,
	}
	if focused != "" && focused == paneID {
		info.Command = command
	}
	return info, nil
}

// ValidateAgentAlive judges liveness at the two granularities zellij leaves
// available. Tab existence is checked first: a recorded tab that no longer
// exists is dead no matter how recent the record. Records without a cached
// tab name (written before the field existed, or when the tab was never
// observable) skip that check rather than being deleted outright. Staleness
// then catches agents that exited while their tab stayed open; without it
// such zombies would never be cleaned up.
func (z *Zellij) ValidateAgentAlive(ctx context.Context, st model.AgentState) (bool, error) {
	if st.WindowName != "" {
		exists, err := z.WindowExists(ctx, st.WindowName)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	if z.staleAfter > 0 && z.now().Sub(st.UpdatedTS) > z.staleAfter {
		return false, nil
	}
	return true, nil
}

// WindowExists scans tab names in the current session.
func (z *Zellij) WindowExists(ctx context.Context, name string) (bool, error) {
	out, err := z.exec(ctx, "action", "query-tab-names")
	if err != nil {
		return false, fmt.Errorf("zellij query-tab-names: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// focusedClient parses `zellij action list-clients`, which prints a header
// row and one row per attached client: CLIENT_ID, the focused pane id, and
// the running command. Terminal pane ids arrive as "terminal_3" while
// $ZELLIJ_PANE_ID is bare ("3"); the prefix is stripped for comparison.
// Plugin panes keep their prefix so they never collide with terminal ids.
// No attached clients is not an error, it just means nothing is observable.
func (z *Zellij) focusedClient(ctx context.Context) (paneID, command string, err error) {
	out, err := z.exec(ctx, "action", "list-clients")
	if err != nil {
		return "", "", fmt.Errorf("zellij list-clients: %w", err)
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "CLIENT_ID") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", "", fmt.Errorf("zellij list-clients: unexpected line %q", line)
		}
		pane := strings.TrimPrefix(fields[1], "terminal_")
		cmd := ""
		if len(fields) >= 3 {
			cmd = filepath.Base(fields[2])
		}
		return pane, cmd, nil
	}
	return "", "", nil
}

// exec runs one zellij command under the configured timeout.
func (z *Zellij) exec(ctx context.Context, args ...string) (string, error) {
	if z.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, z.timeout)
		defer cancel()
	}
	return z.run(ctx, "zellij", args...)
}
