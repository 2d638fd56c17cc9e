package mux

import (
	"context"
	"errors"
	"testing"

	"github.com/timvw/muxtrack/internal/model"
)

const weztermListOutput = `[
  {
    "window_id": 0,
    "tab_id": 1,
    "pane_id": 12,
    "workspace": "default",
    "title": "claude",
    "cwd": "file://devbox/home/dev/project",
    "tab_title": "feature-auth",
    "is_active": true
  },
  {
    "window_id": 0,
    "tab_id": 2,
    "pane_id": 13,
    "workspace": "default",
    "title": "zsh",
    "cwd": "file://devbox/home/dev",
    "tab_title": "scratch",
    "is_active": false
  }
]`

func newTestWezTerm(listOut string, listErr error) *WezTerm {
	w := &WezTerm{ownPane: "99"}
	w.run = func(ctx context.Context, name string, args ...string) (string, error) {
		if listErr != nil {
			return "", listErr
		}
		return listOut, nil
	}
	return w
}

func TestWezTermLivePaneInfoFromListing(t *testing.T) {
	w := newTestWezTerm(weztermListOutput, nil)

	info, err := w.LivePaneInfo(context.Background(), "12")
	if err != nil {
		t.Fatalf("LivePaneInfo error: %v", err)
	}
	if info == nil {
		t.Fatal("LivePaneInfo returned nil for a listed pane")
	}
	if info.PID != 0 {
		t.Errorf("PID: got %d, want 0 (listing carries no pid)", info.PID)
	}
	if info.Command != "" {
		t.Errorf("Command: got %q, want empty (listing carries no command)", info.Command)
	}
	if info.WorkDir != "/home/dev/project" {
		t.Errorf("WorkDir: got %q, want file URI path", info.WorkDir)
	}
	if info.Session != "default" {
		t.Errorf("Session: got %q, want workspace name", info.Session)
	}
	if info.Window != "feature-auth" {
		t.Errorf("Window: got %q, want tab title", info.Window)
	}
	if info.Title != "claude" {
		t.Errorf("Title: got %q, want %q", info.Title, "claude")
	}
}

func TestWezTermLivePaneInfoUnlistedPaneIsGap(t *testing.T) {
	w := newTestWezTerm(weztermListOutput, nil)

	info, err := w.LivePaneInfo(context.Background(), "44")
	if err != nil {
		t.Fatalf("unlisted pane should be absence, got error: %v", err)
	}
	if info != nil {
		t.Errorf("unlisted pane should be absence, got %+v", info)
	}
}

func TestWezTermLivePaneInfoBadJSONIsFailure(t *testing.T) {
	w := newTestWezTerm("not json", nil)
	if _, err := w.LivePaneInfo(context.Background(), "12"); err == nil {
		t.Error("unparseable listing should surface as a query failure")
	}
}

func TestWezTermLivePaneInfoCommandFailureIsFailure(t *testing.T) {
	w := newTestWezTerm("", errors.New("wezterm: mux server not running"))
	if _, err := w.LivePaneInfo(context.Background(), "12"); err == nil {
		t.Error("failed listing should surface as a query failure")
	}
}

func TestWezTermValidateAgentAliveReducesToExistence(t *testing.T) {
	// Records written through this backend store pid 0 and an empty
	// command, so the default policy keeps the record while the pane is
	// listed and kills it when it is not.
	st := model.AgentState{
		Key:     model.PaneKey{Mux: "wezterm", Session: "default", Window: "feature-auth", Pane: "12"},
		PanePID: 0,
		Command: "",
	}

	w := newTestWezTerm(weztermListOutput, nil)
	alive, err := w.ValidateAgentAlive(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !alive {
		t.Error("listed pane should be alive")
	}

	st.Key.Pane = "44"
	alive, err = w.ValidateAgentAlive(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Error("unlisted pane should be dead")
	}
}

func TestWezTermWindowExistsMatchesTabTitles(t *testing.T) {
	w := newTestWezTerm(weztermListOutput, nil)

	exists, err := w.WindowExists(context.Background(), "scratch")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("WindowExists(scratch) = false, want true")
	}

	exists, err = w.WindowExists(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("WindowExists(nope) = true, want false")
	}
}

func TestWezTermCapturePaneTrims(t *testing.T) {
	w := &WezTerm{}
	w.run = func(ctx context.Context, name string, args ...string) (string, error) {
		return "a\nb\nc\nd\ne\n", nil
	}

	out, ok := w.CapturePane(context.Background(), "12", 3)
	if !ok {
		t.Fatal("capture failed")
	}
	if out != "c\nd\ne\n" {
		t.Errorf("capture = %q, want last three lines", out)
	}
}

func TestWezTermCapturePaneAbsenceOnFailure(t *testing.T) {
	w := newTestWezTerm("", errors.New("no such pane"))
	if _, ok := w.CapturePane(context.Background(), "12", 10); ok {
		t.Error("failed capture should be absence")
	}
}

func TestPathFromFileURI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"file://devbox/home/dev/project", "/home/dev/project"},
		{"file:///home/dev", "/home/dev"},
		{"/already/a/path", "/already/a/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := pathFromFileURI(tt.input); got != tt.want {
			t.Errorf("pathFromFileURI(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWezTermSendTextAppendsCarriageReturn(t *testing.T) {
	var calls [][]string
	w := &WezTerm{}
	w.run = func(ctx context.Context, name string, args ...string) (string, error) {
		calls = append(calls, append([]string{name}, args...))
		return "", nil
	}

	if err := w.SendText(context.Background(), "12", "continue"); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("got %d wezterm calls, want 1", len(calls))
	}
	args := calls[0]
	if args[len(args)-1] != "continue\r" {
		t.Errorf("sent %q, want text with trailing carriage return", args[len(args)-1])
	}

	calls = nil
	if err := w.SendText(context.Background(), "12", "already\r"); err != nil {
		t.Fatal(err)
	}
	if got := calls[0][len(calls[0])-1]; got != "already\r" {
		t.Errorf("sent %q, want single trailing carriage return", got)
	}
}
