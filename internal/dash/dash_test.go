package dash

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/muxtrack/internal/model"
	"github.com/timvw/muxtrack/internal/mux"
	"github.com/timvw/muxtrack/internal/reconcile"
	"github.com/timvw/muxtrack/internal/state"
)

// previewBackend is a minimal Backend for exercising the dashboard's capture
// path. It serves canned content and refuses to capture its own pane.
type previewBackend struct {
	name    string
	ownPane string
	content string
}

var _ mux.Backend = (*previewBackend)(nil)

func (b *previewBackend) Name() string { return b.name }

func (b *previewBackend) CapturePane(ctx context.Context, paneID string, maxLines int) (string, bool) {
	if b.ownPane != "" && paneID == b.ownPane {
		return "", false
	}
	return b.content, true
}

func (b *previewBackend) LivePaneInfo(ctx context.Context, paneID string) (*model.LivePaneInfo, error) {
	return nil, nil
}

func (b *previewBackend) ValidateAgentAlive(ctx context.Context, st model.AgentState) (bool, error) {
	return true, nil
}

func (b *previewBackend) WindowExists(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (b *previewBackend) OwnPaneID() string { return b.ownPane }

// testAgent builds a tracked agent for table tests.
func testAgent(muxName, session, window, pane string) model.AgentState {
	return model.AgentState{
		Key:       model.PaneKey{Mux: muxName, Session: session, Window: window, Pane: pane},
		WorkDir:   "/home/dev/project",
		Status:    model.StatusWorking,
		StatusTS:  time.Now().Add(-2 * time.Minute),
		PanePID:   1234,
		Command:   "claude",
		UpdatedTS: time.Now().Add(-time.Minute),
	}
}

// newTestModel creates a dashModel with the given agents, cursor on the
// first row. Suitable for testing navigation and keyboard handling.
func newTestModel(agents ...model.AgentState) *dashModel {
	return &dashModel{
		agents:   agents,
		failed:   make(map[string]error),
		previews: NewPreviewCache(time.Minute),
		st:       newStyles(DarkTheme()),
		width:    120,
		height:   40,
	}
}

// --- Keyboard navigation ---

func TestListKey_UpDownNavigation(t *testing.T) {
	m := newTestModel(
		testAgent("tmux", "work", "0", "%1"),
		testAgent("tmux", "work", "0", "%2"),
		testAgent("tmux", "work", "1", "%3"),
	)

	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	up := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}

	_, _ = m.handleListKey(down)
	if m.cursor != 1 {
		t.Errorf("after j: cursor=%d, want 1", m.cursor)
	}
	_, _ = m.handleListKey(down)
	_, _ = m.handleListKey(down) // already at last row, must not move past
	if m.cursor != 2 {
		t.Errorf("cursor should clamp at last row, got %d", m.cursor)
	}
	_, _ = m.handleListKey(up)
	if m.cursor != 1 {
		t.Errorf("after k: cursor=%d, want 1", m.cursor)
	}
}

func TestListKey_RefreshSetsReconciling(t *testing.T) {
	m := newTestModel(testAgent("tmux", "work", "0", "%1"))

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	_, _ = m.handleListKey(msg)

	if !m.reconciling {
		t.Error("expected reconciling=true after r key")
	}
}

func TestListKey_NudgeWithoutSenderShowsMessage(t *testing.T) {
	m := newTestModel(testAgent("zellij", "main", "compile", "1"))
	// previewBackend does not implement Sender
	m.backends = map[string]mux.Backend{
		"zellij": &previewBackend{name: "zellij"},
	}

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}
	_, _ = m.handleListKey(msg)

	if m.mode != modeList {
		t.Error("expected to stay in list mode when backend cannot send")
	}
	if m.message == "" {
		t.Error("expected an explanatory message")
	}
}

func TestListKey_ForgetDeletesRecord(t *testing.T) {
	dir := t.TempDir()
	store := state.NewStore(dir)

	a := testAgent("tmux", "work", "0", "%1")
	b := testAgent("tmux", "work", "0", "%2")
	for _, st := range []model.AgentState{a, b} {
		if err := store.Upsert(st); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	m := newTestModel(a, b)
	m.store = store
	m.cursor = 1 // select b

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}
	_, _ = m.handleListKey(msg)

	if len(m.agents) != 1 {
		t.Fatalf("expected 1 row after forget, got %d", len(m.agents))
	}
	if m.cursor != 0 {
		t.Errorf("cursor should clamp after removing last row, got %d", m.cursor)
	}
	got, err := store.Get(b.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("forgotten record should be gone from the store")
	}
	if still, _ := store.Get(a.Key); still == nil {
		t.Error("other record should survive forget")
	}
}

func TestNudgeKey_EscapeCancels(t *testing.T) {
	a := testAgent("tmux", "work", "0", "%1")
	m := newTestModel(a)
	m.mode = modeNudge
	m.nudgeTarget = &a

	msg := tea.KeyMsg{Type: tea.KeyEsc}
	_, _ = m.handleNudgeKey(msg)

	if m.mode != modeList {
		t.Error("expected escape to return to list mode")
	}
	if m.nudgeTarget != nil {
		t.Error("expected nudge target to be cleared")
	}
}

// --- Reconcile results folding into the table ---

func TestApplyResult_SortsAndIndexesFailures(t *testing.T) {
	m := newTestModel()

	b := testAgent("tmux", "work", "1", "%9")
	a := testAgent("tmux", "alpha", "0", "%1")
	result := &reconcile.Result{
		Alive: []model.AgentState{b, a},
		Failures: []reconcile.Failure{
			{Key: b.Key, Err: errors.New("no server running")},
		},
	}
	m.applyResult(result)

	if len(m.agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(m.agents))
	}
	if m.agents[0].Key.Session != "alpha" {
		t.Errorf("expected rows sorted by key, got %s first", m.agents[0].Key)
	}
	if _, ok := m.failed[b.Key.String()]; !ok {
		t.Error("expected failure to be indexed by key")
	}
	if m.runCount != 1 {
		t.Errorf("runCount: got %d, want 1", m.runCount)
	}
}

func TestApplyResult_FiltersExcludedSessions(t *testing.T) {
	m := newTestModel()
	m.exclude = []string{"scratch-*", "monitoring"}

	result := &reconcile.Result{
		Alive: []model.AgentState{
			testAgent("tmux", "work", "0", "%1"),
			testAgent("tmux", "scratch-tmp", "0", "%2"),
			testAgent("tmux", "monitoring", "0", "%3"),
		},
	}
	m.applyResult(result)

	if len(m.agents) != 1 {
		t.Fatalf("expected 1 visible agent, got %d", len(m.agents))
	}
	if m.agents[0].Key.Session != "work" {
		t.Errorf("wrong agent survived the filter: %s", m.agents[0].Key)
	}
}

func TestApplyResult_CursorFollowsSelectedKey(t *testing.T) {
	a := testAgent("tmux", "alpha", "0", "%1")
	z := testAgent("tmux", "zulu", "0", "%9")
	m := newTestModel(a, z)
	m.cursor = 1 // select zulu

	// A new record sorts between the two; the cursor must follow zulu.
	mid := testAgent("tmux", "mike", "0", "%5")
	m.applyResult(&reconcile.Result{Alive: []model.AgentState{z, mid, a}})

	sel := m.selected()
	if sel == nil || sel.Key.Session != "zulu" {
		t.Errorf("cursor should follow the selected record, got %v", sel)
	}
}

func TestApplyResult_SelectedRecordPruned(t *testing.T) {
	a := testAgent("tmux", "alpha", "0", "%1")
	z := testAgent("tmux", "zulu", "0", "%9")
	m := newTestModel(a, z)
	m.cursor = 1 // select zulu

	// zulu was pruned; cursor falls back to the first row.
	m.applyResult(&reconcile.Result{
		Alive:  []model.AgentState{a},
		Pruned: []model.PaneKey{z.Key},
	})

	sel := m.selected()
	if sel == nil {
		t.Fatal("expected a valid selection after prune")
	}
	if sel.Key.Session != "alpha" {
		t.Errorf("expected fallback to first row, got %s", sel.Key)
	}
	if m.lastPruned != 1 {
		t.Errorf("lastPruned: got %d, want 1", m.lastPruned)
	}
}

// --- Ticks ---

func TestTick_SkippedWhileReconciling(t *testing.T) {
	m := newTestModel(testAgent("tmux", "work", "0", "%1"))
	m.refresh = time.Second
	m.reconciling = true

	_, cmd := m.Update(tickMsg{})

	if !m.reconciling {
		t.Error("tick must not clear the in-flight flag")
	}
	if cmd == nil {
		t.Error("tick should reschedule itself while a pass is running")
	}
}

// --- Preview capture ---

func TestDoPreview_StripsANSIEscapes(t *testing.T) {
	a := testAgent("tmux", "work", "0", "%1")
	m := newTestModel(a)
	m.backends = map[string]mux.Backend{
		"tmux": &previewBackend{name: "tmux", content: "\x1b[32mworking\x1b[0m on it"},
	}

	msg := m.doPreview(a)()
	pm, ok := msg.(previewMsg)
	if !ok {
		t.Fatalf("expected previewMsg, got %T", msg)
	}
	if !pm.ok {
		t.Fatal("expected a successful capture")
	}
	if pm.content != "working on it" {
		t.Errorf("expected escapes stripped, got %q", pm.content)
	}
}

func TestDoPreview_OwnPaneRefused(t *testing.T) {
	a := testAgent("zellij", "main", "compile", "7")
	m := newTestModel(a)
	m.backends = map[string]mux.Backend{
		"zellij": &previewBackend{name: "zellij", ownPane: "7", content: "never seen"},
	}

	msg := m.doPreview(a)()
	pm, ok := msg.(previewMsg)
	if !ok {
		t.Fatalf("expected previewMsg, got %T", msg)
	}
	if pm.ok {
		t.Error("capturing the dashboard's own pane must report absence")
	}
}

func TestDoPreview_UnknownBackend(t *testing.T) {
	a := testAgent("wezterm", "", "", "42")
	m := newTestModel(a)
	m.backends = map[string]mux.Backend{}

	msg := m.doPreview(a)()
	pm, ok := msg.(previewMsg)
	if !ok {
		t.Fatalf("expected previewMsg, got %T", msg)
	}
	if pm.ok {
		t.Error("expected absence when no backend owns the record")
	}
}

func TestPreviewMsg_WarmsCache(t *testing.T) {
	a := testAgent("tmux", "work", "0", "%1")
	m := newTestModel(a)
	m.capturing = true

	_, _ = m.Update(previewMsg{key: a.Key.String(), content: "snapshot", ok: true})

	if m.capturing {
		t.Error("previewMsg should clear the capturing flag")
	}
	p, ok := m.previews.Lookup(a.Key.String())
	if !ok {
		t.Fatal("expected the result to be cached")
	}
	if p.Content != "snapshot" {
		t.Errorf("cached content: got %q", p.Content)
	}
}

// --- Rendering helpers ---

func TestStatusIcon(t *testing.T) {
	m := newTestModel()

	tests := []struct {
		status model.AgentStatus
		want   string
	}{
		{model.StatusWorking, "●"},
		{model.StatusIdle, "○"},
		{model.StatusDone, "✔"},
		{"", "·"},
	}
	for _, tt := range tests {
		st := testAgent("tmux", "work", "0", "%1")
		st.Status = tt.status
		if got := m.statusIcon(st); got != tt.want {
			t.Errorf("statusIcon(%q): got %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusIcon_UnverifiedOverridesStatus(t *testing.T) {
	st := testAgent("tmux", "work", "0", "%1")
	m := newTestModel(st)
	m.failed[st.Key.String()] = errors.New("no server running")

	if got := m.statusIcon(st); got != "?" {
		t.Errorf("unverified record: got %q, want %q", got, "?")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"much too long for this", 10, "much to..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d): got %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"/short", 20, "/short"},
		{"/home/dev/very/deep/project", 15, "...deep/project"},
	}
	for _, tt := range tests {
		got := truncateLeft(tt.in, tt.maxLen)
		if got != tt.want {
			t.Errorf("truncateLeft(%q, %d): got %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
		if len(got) > tt.maxLen {
			t.Errorf("truncateLeft(%q, %d): result %q exceeds max", tt.in, tt.maxLen, got)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m"},
		{2 * time.Hour, "2h"},
		{49 * time.Hour, "2d"},
		{-5 * time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
