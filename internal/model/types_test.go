package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PaneKey
		wantErr bool
	}{
		{
			name:  "tmux key",
			input: "tmux:main:feature-auth.%5",
			want:  PaneKey{Mux: "tmux", Session: "main", Window: "feature-auth", Pane: "%5"},
		},
		{
			name:  "numeric pane id",
			input: "wezterm:default:build.12",
			want:  PaneKey{Mux: "wezterm", Session: "default", Window: "build", Pane: "12"},
		},
		{
			name:  "window name containing a dot",
			input: "tmux:main:v1.2-fix.%0",
			want:  PaneKey{Mux: "tmux", Session: "main", Window: "v1.2-fix", Pane: "%0"},
		},
		{
			name:  "empty window",
			input: "zellij:dev:.3",
			want:  PaneKey{Mux: "zellij", Session: "dev", Window: "", Pane: "3"},
		},
		{
			name:    "missing components",
			input:   "tmux:main",
			wantErr: true,
		},
		{
			name:    "missing pane id",
			input:   "tmux:main:w1.",
			wantErr: true,
		},
		{
			name:    "no dot separator",
			input:   "tmux:main:w1",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	keys := []PaneKey{
		{Mux: "tmux", Session: "s1", Window: "w1", Pane: "%5"},
		{Mux: "wezterm", Session: "default", Window: "tab with spaces", Pane: "7"},
		{Mux: "zellij", Session: "dev", Window: "", Pane: "0"},
	}
	for _, k := range keys {
		got, err := ParseKey(k.String())
		if err != nil {
			t.Fatalf("ParseKey(%q) error: %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParseKey(String()) = %+v, want %+v", got, k)
		}
	}
}

func TestCanonicalDistinguishesAdjacentComponents(t *testing.T) {
	a := PaneKey{Mux: "tmux", Session: "ab", Window: "c", Pane: "1"}
	b := PaneKey{Mux: "tmux", Session: "a", Window: "bc", Pane: "1"}
	if a.Canonical() == b.Canonical() {
		t.Errorf("Canonical() collision: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestAgentStateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		st   AgentState
	}{
		{
			name: "all fields",
			st: AgentState{
				Key:         PaneKey{Mux: "tmux", Session: "s1", Window: "w1", Pane: "%5"},
				WorkDir:     "/home/dev/project",
				Status:      StatusWorking,
				StatusTS:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
				PaneTitle:   "claude",
				PanePID:     4242,
				Command:     "claude",
				WindowName:  "w1",
				SessionName: "s1",
				UpdatedTS:   time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC),
			},
		},
		{
			name: "optional fields absent",
			st: AgentState{
				Key:       PaneKey{Mux: "zellij", Session: "dev", Window: "", Pane: "3"},
				WorkDir:   "/tmp/work",
				PanePID:   0,
				Command:   "",
				UpdatedTS: time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC),
			},
		},
		{
			name: "status without title or window cache",
			st: AgentState{
				Key:       PaneKey{Mux: "wezterm", Session: "default", Window: "build", Pane: "12"},
				WorkDir:   "/srv/app",
				Status:    StatusDone,
				StatusTS:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
				PanePID:   99,
				Command:   "codex",
				UpdatedTS: time.Date(2026, 3, 14, 10, 0, 1, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.st)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			var got AgentState
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.st) {
				t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, tt.st)
			}
		})
	}
}

func TestAgentStateDecodesLegacyRecord(t *testing.T) {
	// Records written before pane_title/window_name/session_name existed
	// must still deserialize; absent fields default to unknown.
	legacy := `{
		"pane_key": {"mux": "tmux", "session": "s1", "window": "w1", "pane": "%0"},
		"workdir": "/home/dev",
		"status": "idle",
		"status_ts": "2026-01-02T15:04:05Z",
		"pane_pid": 77,
		"command": "claude",
		"updated_ts": "2026-01-02T15:05:00Z"
	}`

	var st AgentState
	if err := json.Unmarshal([]byte(legacy), &st); err != nil {
		t.Fatalf("Unmarshal legacy record: %v", err)
	}
	if st.PaneTitle != "" {
		t.Errorf("PaneTitle: got %q, want empty", st.PaneTitle)
	}
	if st.WindowName != "" {
		t.Errorf("WindowName: got %q, want empty", st.WindowName)
	}
	if st.SessionName != "" {
		t.Errorf("SessionName: got %q, want empty", st.SessionName)
	}
	if st.PanePID != 77 {
		t.Errorf("PanePID: got %d, want 77", st.PanePID)
	}
	if st.Status != StatusIdle {
		t.Errorf("Status: got %q, want %q", st.Status, StatusIdle)
	}
}

func TestAgentStateDecodesWithoutStatus(t *testing.T) {
	// An agent that has never reported a status has no status or status_ts
	// in its record at all.
	raw := `{
		"pane_key": {"mux": "zellij", "session": "dev", "window": "", "pane": "2"},
		"workdir": "/tmp",
		"pane_pid": 0,
		"command": "",
		"updated_ts": "2026-01-02T15:05:00Z"
	}`

	var st AgentState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if st.Status != "" {
		t.Errorf("Status: got %q, want empty", st.Status)
	}
	if !st.StatusTS.IsZero() {
		t.Errorf("StatusTS: got %v, want zero", st.StatusTS)
	}
}

func TestAgentStateOmitsEmptyOptionalFields(t *testing.T) {
	st := AgentState{
		Key:       PaneKey{Mux: "tmux", Session: "s1", Window: "w1", Pane: "%0"},
		WorkDir:   "/home/dev",
		UpdatedTS: time.Now(),
	}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	for _, field := range []string{"status", "status_ts", "pane_title", "window_name", "session_name"} {
		if containsJSONField(data, field) {
			t.Errorf("empty %s should be omitted, got: %s", field, data)
		}
	}
}

func containsJSONField(data []byte, field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    AgentStatus
		wantErr bool
	}{
		{"idle", StatusIdle, false},
		{"working", StatusWorking, false},
		{"done", StatusDone, false},
		{"WORKING", StatusWorking, false},
		{" done ", StatusDone, false},
		{"running", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAgentStateValidate(t *testing.T) {
	valid := AgentState{
		Key:     PaneKey{Mux: "tmux", Session: "s1", Window: "w1", Pane: "%1"},
		WorkDir: "/work",
		Status:  StatusIdle,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid record: %v", err)
	}

	noMux := valid
	noMux.Key.Mux = ""
	if err := noMux.Validate(); err == nil {
		t.Error("Validate() with empty mux: expected error")
	}

	noPane := valid
	noPane.Key.Pane = ""
	if err := noPane.Validate(); err == nil {
		t.Error("Validate() with empty pane id: expected error")
	}

	badStatus := valid
	badStatus.Status = "sleeping"
	if err := badStatus.Validate(); err == nil {
		t.Error("Validate() with unknown status: expected error")
	}

	noStatus := valid
	noStatus.Status = ""
	if err := noStatus.Validate(); err != nil {
		t.Errorf("Validate() with empty status should pass: %v", err)
	}
}
