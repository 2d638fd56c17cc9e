package mux

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/timvw/muxtrack/internal/model"
)

// WezTerm is the list-all backend: there is no per-pane query, but one
// `wezterm cli list` call enumerates every pane with its metadata, so any
// pane is still addressable.
//
// The listing does not expose the foreground process, so LivePaneInfo
// reports PID 0 and an empty command; the default liveness policy then
// degrades gracefully to pane existence.
type WezTerm struct {
	run     runner
	timeout time.Duration
	ownPane string
}

// NewWezTerm creates the wezterm backend. The process's own pane id comes
// from $WEZTERM_PANE.
func NewWezTerm(opts Options) *WezTerm {
	return &WezTerm{
		run:     runCommand,
		timeout: opts.CommandTimeout,
		ownPane: os.Getenv("WEZTERM_PANE"),
	}
}

// weztermPane is one entry of `wezterm cli list --format json`.
type weztermPane struct {
	PaneID    int64  `json:"pane_id"`
	TabID     int64  `json:"tab_id"`
	WindowID  int64  `json:"window_id"`
	Workspace string `json:"workspace"`
	Title     string `json:"title"`
	CWD       string `json:"cwd"`
	TabTitle  string `json:"tab_title"`
	IsActive  bool   `json:"is_active"`
}

// Name returns "wezterm".
func (w *WezTerm) Name() string {
	return "wezterm"
}

// OwnPaneID returns the pane id this process was spawned into, or "" when
// not running inside wezterm.
func (w *WezTerm) OwnPaneID() string {
	return w.ownPane
}

// CapturePane fetches the pane's visible text. wezterm has no server-side
// line bound, so trimming happens here.
func (w *WezTerm) CapturePane(ctx context.Context, paneID string, maxLines int) (string, bool) {
	out, err := w.exec(ctx, "cli", "get-text", "--pane-id", paneID)
	if err != nil {
		return "", false
	}
	return tailLines(out, maxLines), true
}

// LivePaneInfo finds the pane in the full listing. Absence from the listing
// means the pane is gone; a failed or unparseable listing is a query failure.
func (w *WezTerm) LivePaneInfo(ctx context.Context, paneID string) (*model.LivePaneInfo, error) {
	panes, err := w.listPanes(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range panes {
		if strconv.FormatInt(p.PaneID, 10) != paneID {
			continue
		}
		return &model.LivePaneInfo{
			PID:     0,
			Command: "",
			WorkDir: pathFromFileURI(p.CWD),
			Title:   p.Title,
			Session: p.Workspace,
			Window:  p.TabTitle,
		}, nil
	}
	return nil, nil
}

// ValidateAgentAlive applies the default policy. With PID 0 and an empty
// command on both sides it reduces to "does the pane still exist".
func (w *WezTerm) ValidateAgentAlive(ctx context.Context, st model.AgentState) (bool, error) {
	return defaultValidate(ctx, w, st)
}

// WindowExists scans tab titles in the full listing.
func (w *WezTerm) WindowExists(ctx context.Context, name string) (bool, error) {
	panes, err := w.listPanes(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range panes {
		if p.TabTitle == name {
			return true, nil
		}
	}
	return false, nil
}

// SendText delivers text to a pane followed by a carriage return so the
// receiving program sees a submitted line. --no-paste makes wezterm deliver
// it as keystrokes so TUIs see individual input events.
func (w *WezTerm) SendText(ctx context.Context, paneID, text string) error {
	if !strings.HasSuffix(text, "\r") {
		text += "\r"
	}
	if _, err := w.exec(ctx, "cli", "send-text", "--no-paste", "--pane-id", paneID, text); err != nil {
		return fmt.Errorf("wezterm send-text: %w", err)
	}
	return nil
}

// FocusPane activates the pane.
func (w *WezTerm) FocusPane(ctx context.Context, paneID string) error {
	if _, err := w.exec(ctx, "cli", "activate-pane", "--pane-id", paneID); err != nil {
		return fmt.Errorf("wezterm activate-pane: %w", err)
	}
	return nil
}

func (w *WezTerm) listPanes(ctx context.Context) ([]weztermPane, error) {
	out, err := w.exec(ctx, "cli", "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("wezterm cli list: %w", err)
	}
	var panes []weztermPane
	if err := json.Unmarshal([]byte(out), &panes); err != nil {
		return nil, fmt.Errorf("wezterm cli list: bad json: %w", err)
	}
	return panes, nil
}

// exec runs one wezterm command under the configured timeout.
func (w *WezTerm) exec(ctx context.Context, args ...string) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.run(ctx, "wezterm", args...)
}

// pathFromFileURI converts wezterm's file://host/path cwd form to a plain
// path, passing through anything that does not parse as a URI.
func pathFromFileURI(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return s
	}
	return u.Path
}
