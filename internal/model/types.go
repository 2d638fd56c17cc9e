package model

import (
	"fmt"
	"strings"
	"time"
)

// AgentStatus is the self-reported state of a tracked agent.
type AgentStatus string

const (
	StatusIdle    AgentStatus = "idle"
	StatusWorking AgentStatus = "working"
	StatusDone    AgentStatus = "done"
)

// Valid reports whether s is one of the known statuses. The empty string is
// not valid here; a record that has never received a status report carries
// an empty status and callers treat it as "unknown".
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusWorking, StatusDone:
		return true
	default:
		return false
	}
}

// ParseStatus converts a user-supplied string into an AgentStatus.
func ParseStatus(s string) (AgentStatus, error) {
	st := AgentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q (want idle, working, or done)", s)
	}
	return st, nil
}

// PaneKey uniquely addresses one tracked agent slot: which multiplexer,
// which session, which window/tab, which pane. It is the storage key;
// one record per key, last write wins.
type PaneKey struct {
	// Mux is the backend name (e.g., "tmux", "wezterm", "zellij").
	Mux string `json:"mux"`
	// Session is the session or workspace name.
	Session string `json:"session"`
	// Window is the window/tab name. May be empty on backends that cannot
	// report it (the record is then validated by staleness alone).
	Window string `json:"window"`
	// Pane is the backend-native pane identifier (e.g., "%5", "3").
	Pane string `json:"pane"`
}

// String renders the display form "mux:session:window.pane".
func (k PaneKey) String() string {
	return fmt.Sprintf("%s:%s:%s.%s", k.Mux, k.Session, k.Window, k.Pane)
}

// Canonical returns a stable byte form for hashing. NUL separators keep
// adjacent components from colliding.
func (k PaneKey) Canonical() string {
	return strings.Join([]string{k.Mux, k.Session, k.Window, k.Pane}, "\x00")
}

// ParseKey parses the display form produced by PaneKey.String. The pane
// identifier may not contain "."; the window name may.
func ParseKey(s string) (PaneKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return PaneKey{}, fmt.Errorf("invalid pane key %q (want mux:session:window.pane)", s)
	}
	rest := parts[2]
	dot := strings.LastIndex(rest, ".")
	if dot < 0 || dot == len(rest)-1 {
		return PaneKey{}, fmt.Errorf("invalid pane key %q (missing pane id)", s)
	}
	k := PaneKey{
		Mux:     parts[0],
		Session: parts[1],
		Window:  rest[:dot],
		Pane:    rest[dot+1:],
	}
	if k.Mux == "" || k.Pane == "" {
		return PaneKey{}, fmt.Errorf("invalid pane key %q", s)
	}
	return k, nil
}

// AgentState is the persisted record describing one tracked agent.
// A write always supplies the complete record (full replace, not merge).
type AgentState struct {
	// Key identifies the pane this agent occupies.
	Key PaneKey `json:"pane_key"`
	// WorkDir is the agent's working directory (absolute path).
	WorkDir string `json:"workdir"`
	// Status is the last reported status. Empty when the agent has not
	// reported one yet.
	Status AgentStatus `json:"status,omitempty"`
	// StatusTS is when Status last changed, not when the record was last
	// written. Zero when Status is empty.
	StatusTS time.Time `json:"status_ts,omitzero"`
	// PaneTitle is the pane title, when the backend can query one.
	PaneTitle string `json:"pane_title,omitempty"`
	// PanePID is the pane's foreground process id. 0 means unknown
	// (backends that cannot observe pids report 0).
	PanePID int `json:"pane_pid"`
	// Command is the foreground command name. Empty means unknown.
	Command string `json:"command"`
	// WindowName and SessionName cache what the last successful live query
	// reported. Backends that can only validate at tab granularity read
	// them back because they cannot re-derive either for unfocused panes.
	WindowName  string `json:"window_name,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	// UpdatedTS is stamped by the store on every upsert and increases
	// monotonically for a given key. A consumer holding a copy with an
	// older UpdatedTS must discard it rather than write it back.
	UpdatedTS time.Time `json:"updated_ts"`
}

// Validate checks the fields a record must carry before it is persisted.
func (st AgentState) Validate() error {
	if st.Key.Mux == "" {
		return fmt.Errorf("pane key: mux is required")
	}
	if st.Key.Pane == "" {
		return fmt.Errorf("pane key: pane id is required")
	}
	if st.Status != "" && !st.Status.Valid() {
		return fmt.Errorf("invalid status %q", st.Status)
	}
	return nil
}

// LivePaneInfo is a transient snapshot returned by a live backend query.
// It is produced fresh on every query and never persisted.
type LivePaneInfo struct {
	// PID is the pane's foreground process id. 0 when the backend cannot
	// observe it.
	PID int
	// Command is the foreground command name. Empty when unobservable.
	Command string
	// WorkDir is the pane's working directory.
	WorkDir string
	// Title is the pane title, on backends with a title query.
	Title string
	// Session and Window name the pane's location. Window may be empty on
	// backends that cannot report it.
	Session string
	Window  string
}
