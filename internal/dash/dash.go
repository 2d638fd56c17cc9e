// Package dash renders the interactive agent dashboard: a table of tracked
// agents kept fresh by reconciliation passes, with a live preview of the
// selected agent's pane underneath.
package dash

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/timvw/muxtrack/internal/agent"
	"github.com/timvw/muxtrack/internal/config"
	"github.com/timvw/muxtrack/internal/model"
	"github.com/timvw/muxtrack/internal/mux"
	mtotel "github.com/timvw/muxtrack/internal/otel"
	"github.com/timvw/muxtrack/internal/reconcile"
	"github.com/timvw/muxtrack/internal/state"
)

// view mode
type viewMode int

const (
	modeList viewMode = iota
	modeNudge
)

// messages
type reconcileMsg struct {
	result *reconcile.Result
	err    error
}

type previewMsg struct {
	key     string
	content string
	ok      bool
}

type tickMsg struct{}

type previewTickMsg struct{}

// Dash runs the interactive dashboard.
type Dash struct {
	Engine          *reconcile.Engine
	Store           *state.Store
	Backends        map[string]mux.Backend
	Refresh         time.Duration // reconcile cadence; 0 disables auto-refresh
	CaptureRefresh  time.Duration // preview cadence; 0 disables preview refresh
	CaptureLines    int
	ExcludeSessions []string
	Theme           Theme
	Metrics         *mtotel.Metrics // nil-safe
}

// dashModel implements tea.Model.
type dashModel struct {
	engine   *reconcile.Engine
	store    *state.Store
	backends map[string]mux.Backend
	metrics  *mtotel.Metrics
	ctx      context.Context

	refresh        time.Duration
	captureRefresh time.Duration
	captureLines   int
	exclude        []string

	st styles

	agents []model.AgentState
	failed map[string]error // key string -> why validation could not answer
	cursor int

	preview    viewport.Model
	previews   *PreviewCache
	previewFor string // key string the viewport currently shows
	vpReady    bool

	mode        viewMode
	textInput   textinput.Model
	nudgeTarget *model.AgentState

	// dimensions
	width  int
	height int

	// status
	reconciling bool
	capturing   bool
	message     string
	runCount    int
	lastPruned  int
}

func (d *Dash) Run(ctx context.Context) error {
	ti := textinput.New()
	ti.Placeholder = "Type text to send and press Enter..."
	ti.CharLimit = 2048
	ti.Width = 80

	cacheTTL := d.CaptureRefresh
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Second
	}

	m := &dashModel{
		engine:         d.Engine,
		store:          d.Store,
		backends:       d.Backends,
		metrics:        d.Metrics,
		ctx:            ctx,
		refresh:        d.Refresh,
		captureRefresh: d.CaptureRefresh,
		captureLines:   d.CaptureLines,
		exclude:        d.ExcludeSessions,
		st:             newStyles(d.Theme),
		failed:         make(map[string]error),
		previews:       NewPreviewCache(cacheTTL),
		textInput:      ti,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *dashModel) Init() tea.Cmd {
	m.reconciling = true
	return tea.Batch(m.doReconcile(), m.schedulePreviewTick())
}

// scheduleTick returns a tea.Cmd that sends a tickMsg after the refresh
// interval. Returns nil if auto-refresh is disabled (interval <= 0).
func (m *dashModel) scheduleTick() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *dashModel) schedulePreviewTick() tea.Cmd {
	if m.captureRefresh <= 0 {
		return nil
	}
	return tea.Tick(m.captureRefresh, func(time.Time) tea.Msg {
		return previewTickMsg{}
	})
}

func (m *dashModel) doReconcile() tea.Cmd {
	engine := m.engine
	ctx := m.ctx
	return func() tea.Msg {
		result, err := engine.Run(ctx)
		return reconcileMsg{result: result, err: err}
	}
}

// doPreview captures the selected agent's pane off the Update loop.
func (m *dashModel) doPreview(st model.AgentState) tea.Cmd {
	key := st.Key.String()
	backend, ok := m.backends[st.Key.Mux]
	if !ok {
		return func() tea.Msg {
			return previewMsg{key: key, ok: false}
		}
	}
	ctx := m.ctx
	lines := m.captureLines
	metrics := m.metrics
	paneID := st.Key.Pane
	return func() tea.Msg {
		content, captured := backend.CapturePane(ctx, paneID, lines)
		metrics.RecordCapture(ctx, backend.Name(), captured)
		if !captured {
			if own := backend.OwnPaneID(); own != "" && own == paneID {
				metrics.RecordSelfCaptureBlock(ctx, backend.Name())
			}
			return previewMsg{key: key, ok: false}
		}
		return previewMsg{key: key, content: ansi.Strip(content), ok: true}
	}
}

// selected returns the agent under the cursor, or nil.
func (m *dashModel) selected() *model.AgentState {
	if m.cursor < 0 || m.cursor >= len(m.agents) {
		return nil
	}
	return &m.agents[m.cursor]
}

// refreshPreview serves the selected pane's preview from cache when fresh,
// otherwise kicks off a capture. At most one capture runs at a time.
func (m *dashModel) refreshPreview() tea.Cmd {
	sel := m.selected()
	if sel == nil {
		m.setPreviewContent("", "no agent selected")
		return nil
	}
	key := sel.Key.String()
	if p, ok := m.previews.Lookup(key); ok {
		m.metrics.RecordPreviewCacheHit(m.ctx)
		m.applyPreview(key, p.Content, p.OK)
		return nil
	}
	if m.capturing {
		return nil
	}
	m.metrics.RecordPreviewCacheMiss(m.ctx)
	m.capturing = true
	return m.doPreview(*sel)
}

// applyPreview updates the viewport when the result belongs to the selected
// row; results for other rows only warm the cache.
func (m *dashModel) applyPreview(key, content string, ok bool) {
	sel := m.selected()
	if sel == nil || sel.Key.String() != key {
		return
	}
	if !ok {
		m.setPreviewContent(key, "preview unavailable")
		return
	}
	m.setPreviewContent(key, content)
}

func (m *dashModel) setPreviewContent(key, content string) {
	m.previewFor = key
	if m.vpReady {
		m.preview.SetContent(content)
		m.preview.GotoBottom()
	}
}

// applyResult folds a reconcile result into the table: surviving agents
// sorted by key, failure reasons indexed, cursor kept on the same record
// when it survived.
func (m *dashModel) applyResult(result *reconcile.Result) {
	var selectedKey string
	if sel := m.selected(); sel != nil {
		selectedKey = sel.Key.String()
	}

	m.agents = m.agents[:0]
	for _, st := range result.Alive {
		if config.MatchesExcludeList(st.Key.Session, m.exclude) {
			continue
		}
		m.agents = append(m.agents, st)
	}
	sort.Slice(m.agents, func(i, j int) bool {
		return m.agents[i].Key.String() < m.agents[j].Key.String()
	})

	m.failed = make(map[string]error, len(result.Failures))
	for _, f := range result.Failures {
		m.failed[f.Key.String()] = f.Err
	}

	m.cursor = 0
	for i, st := range m.agents {
		if st.Key.String() == selectedKey {
			m.cursor = i
			break
		}
	}

	m.runCount++
	m.lastPruned = len(result.Pruned)
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutViewport()
		return m, nil

	case reconcileMsg:
		m.reconciling = false
		if msg.err != nil {
			m.message = fmt.Sprintf("reconcile error: %v", msg.err)
		} else if msg.result != nil {
			m.applyResult(msg.result)
		}
		cmds := []tea.Cmd{m.refreshPreview()}
		if cmd := m.scheduleTick(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		// Auto-refresh: never start a second pass while one is running.
		if m.reconciling {
			return m, m.scheduleTick()
		}
		m.reconciling = true
		return m, m.doReconcile()

	case previewTickMsg:
		cmds := []tea.Cmd{m.schedulePreviewTick()}
		if !m.capturing {
			// Expired cache entries trigger a fresh capture here.
			sel := m.selected()
			if sel != nil {
				key := sel.Key.String()
				if _, ok := m.previews.Lookup(key); !ok {
					m.metrics.RecordPreviewCacheMiss(m.ctx)
					m.capturing = true
					cmds = append(cmds, m.doPreview(*sel))
				}
			}
		}
		return m, tea.Batch(cmds...)

	case previewMsg:
		m.capturing = false
		m.previews.Store(msg.key, msg.content, msg.ok)
		m.applyPreview(msg.key, msg.content, msg.ok)
		return m, nil
	}

	return m, nil
}

func (m *dashModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeNudge:
		return m.handleNudgeKey(msg)
	}
	return m, nil
}

func (m *dashModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			return m, m.refreshPreview()
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.agents)-1 {
			m.cursor++
			return m, m.refreshPreview()
		}
		return m, nil

	case "enter":
		// Jump the multiplexer to the selected pane.
		sel := m.selected()
		if sel == nil {
			return m, nil
		}
		backend, ok := m.backends[sel.Key.Mux]
		if !ok {
			m.message = fmt.Sprintf("no backend for %s", sel.Key.Mux)
			return m, nil
		}
		focuser, ok := backend.(mux.Focuser)
		if !ok {
			m.message = fmt.Sprintf("%s cannot move focus to a pane", backend.Name())
			return m, nil
		}
		if err := focuser.FocusPane(m.ctx, sel.Key.Pane); err != nil {
			m.message = fmt.Sprintf("jump failed: %v", err)
		} else {
			m.message = fmt.Sprintf("jumped to %s", sel.Key)
		}
		return m, nil

	case "n":
		// Open text input to nudge the selected pane.
		sel := m.selected()
		if sel == nil {
			return m, nil
		}
		backend, ok := m.backends[sel.Key.Mux]
		if !ok {
			m.message = fmt.Sprintf("no backend for %s", sel.Key.Mux)
			return m, nil
		}
		if _, ok := backend.(mux.Sender); !ok {
			m.message = fmt.Sprintf("%s cannot send input to a pane", backend.Name())
			return m, nil
		}
		m.mode = modeNudge
		m.nudgeTarget = sel
		m.textInput.SetValue("")
		m.textInput.Focus()
		return m, textinput.Blink

	case "x":
		// Forget the selected record without touching the pane.
		sel := m.selected()
		if sel == nil {
			return m, nil
		}
		if err := m.store.Delete(sel.Key); err != nil {
			m.message = fmt.Sprintf("forget failed: %v", err)
			return m, nil
		}
		m.metrics.RecordStoreDelete(m.ctx)
		m.message = fmt.Sprintf("forgot %s", sel.Key)
		m.agents = append(m.agents[:m.cursor], m.agents[m.cursor+1:]...)
		if m.cursor >= len(m.agents) && m.cursor > 0 {
			m.cursor--
		}
		return m, m.refreshPreview()

	case "r":
		if m.reconciling {
			return m, nil
		}
		m.reconciling = true
		m.message = ""
		return m, m.doReconcile()
	}

	// Everything else (pgup/pgdown, mouse wheel) scrolls the preview.
	if m.vpReady {
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dashModel) handleNudgeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "escape":
		m.mode = modeList
		m.nudgeTarget = nil
		m.textInput.Blur()
		return m, nil

	case "enter":
		text := m.textInput.Value()
		target := m.nudgeTarget
		m.mode = modeList
		m.nudgeTarget = nil
		m.textInput.Blur()
		if text == "" || target == nil {
			return m, nil
		}
		backend, ok := m.backends[target.Key.Mux]
		if !ok {
			m.message = fmt.Sprintf("no backend for %s", target.Key.Mux)
			return m, nil
		}
		sender, ok := backend.(mux.Sender)
		if !ok {
			m.message = fmt.Sprintf("%s cannot send input to a pane", backend.Name())
			return m, nil
		}
		if err := sender.SendText(m.ctx, target.Key.Pane, text); err != nil {
			m.message = fmt.Sprintf("send failed: %v", err)
			return m, nil
		}
		m.message = fmt.Sprintf("sent %q to %s", truncate(text, 40), target.Key)
		// The pane content is about to change; drop the cached preview.
		m.previews.Invalidate(target.Key.String())
		return m, m.refreshPreview()
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// layoutViewport splits the vertical space: header, table, preview, footer.
func (m *dashModel) layoutViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}
	previewHeight := m.height - m.tableHeight() - 5
	if previewHeight < 3 {
		previewHeight = 3
	}
	previewWidth := m.width - 2
	if previewWidth < 10 {
		previewWidth = 10
	}
	if !m.vpReady {
		m.preview = viewport.New(previewWidth, previewHeight)
		m.vpReady = true
		return
	}
	m.preview.Width = previewWidth
	m.preview.Height = previewHeight
}

// tableHeight is the number of rows the agent table may occupy.
func (m *dashModel) tableHeight() int {
	max := m.height / 3
	if max < 4 {
		max = 4
	}
	n := len(m.agents) + 1 // header row
	if n > max {
		n = max
	}
	if n < 2 {
		n = 2
	}
	return n
}

func (m *dashModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.mode {
	case modeList:
		return m.viewList()
	case modeNudge:
		return m.viewNudge()
	}
	return ""
}

func (m *dashModel) viewList() string {
	var b strings.Builder

	// Header: title + keybindings + activity
	b.WriteString(m.st.title.Render("muxtrack"))
	b.WriteString("  ")
	b.WriteString(m.st.dim.Render("j/k=move  Enter=jump  n=nudge  x=forget  r=refresh  q=quit"))
	if m.reconciling {
		b.WriteString("  ")
		b.WriteString(m.st.warn.Render("reconciling..."))
	}
	if m.capturing {
		b.WriteString("  ")
		b.WriteString(m.st.dim.Render("capturing..."))
	}
	b.WriteString("\n")

	if len(m.agents) == 0 {
		if m.reconciling && m.runCount == 0 {
			b.WriteString("  Loading agents...\n")
		} else {
			b.WriteString("  No live agents.\n")
		}
	} else {
		m.renderTable(&b)
	}

	// Preview panel
	sel := m.selected()
	if sel != nil {
		b.WriteString(m.st.dim.Render(fmt.Sprintf(" preview: %s", sel.Key)))
		b.WriteString("\n")
	}
	if m.vpReady {
		b.WriteString(m.st.preview.Render(m.preview.View()))
		b.WriteString("\n")
	}

	// Footer: last run stats
	unverified := len(m.failed)
	footer := fmt.Sprintf("  run #%d | %d agents | %d pruned last run", m.runCount, len(m.agents), m.lastPruned)
	if unverified > 0 {
		footer += fmt.Sprintf(" | %d unverified", unverified)
	}
	b.WriteString(m.st.dim.Render(footer))
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(m.st.status.Render("  " + m.message))
		b.WriteString("\n")
	}

	return b.String()
}

// renderTable writes the agent rows: status, kind, key, workdir, age.
func (m *dashModel) renderTable(b *strings.Builder) {
	kindWidth := 9
	ageWidth := 5

	keyWidth := 20
	for _, st := range m.agents {
		if l := len(st.Key.String()); l > keyWidth {
			keyWidth = l
		}
	}
	keyWidth += 2

	dirWidth := m.width - 4 - kindWidth - keyWidth - ageWidth - 8
	if dirWidth < 12 {
		dirWidth = 12
	}

	header := fmt.Sprintf("  %-2s %-*s %-*s %-*s %*s",
		"", kindWidth, "AGENT", keyWidth, "PANE", dirWidth, "WORKDIR", ageWidth, "AGE")
	b.WriteString(m.st.header.Render(header))
	b.WriteString("\n")

	visible := m.tableHeight() - 1
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.agents) && i < start+visible; i++ {
		st := m.agents[i]
		key := st.Key.String()

		icon := m.statusIcon(st)
		kind := string(agent.KindFromCommand(st.Command))
		dir := truncateLeft(st.WorkDir, dirWidth)
		age := formatAge(time.Since(m.ageBasis(st)))

		row := fmt.Sprintf("%-*s %-*s %-*s %*s",
			kindWidth, truncate(kind, kindWidth), keyWidth, truncate(key, keyWidth), dirWidth, dir, ageWidth, age)

		if i == m.cursor {
			b.WriteString(m.st.selected.Render("> " + icon + " " + row))
		} else {
			b.WriteString("  " + m.styledIcon(st) + " " + m.st.text.Render(row))
		}
		b.WriteString("\n")
	}
}

// ageBasis picks the timestamp the AGE column reflects: the last status
// change when one was reported, else the last write.
func (m *dashModel) ageBasis(st model.AgentState) time.Time {
	if !st.StatusTS.IsZero() {
		return st.StatusTS
	}
	return st.UpdatedTS
}

// statusIcon returns the unstyled icon for a record.
func (m *dashModel) statusIcon(st model.AgentState) string {
	if _, bad := m.failed[st.Key.String()]; bad {
		return "?"
	}
	switch st.Status {
	case model.StatusWorking:
		return "●"
	case model.StatusIdle:
		return "○"
	case model.StatusDone:
		return "✔"
	default:
		return "·"
	}
}

// styledIcon returns the status icon with its color applied.
func (m *dashModel) styledIcon(st model.AgentState) string {
	icon := m.statusIcon(st)
	if _, bad := m.failed[st.Key.String()]; bad {
		return m.st.warn.Render(icon)
	}
	switch st.Status {
	case model.StatusWorking:
		return m.st.working.Render(icon)
	case model.StatusIdle:
		return m.st.idle.Render(icon)
	case model.StatusDone:
		return m.st.done.Render(icon)
	default:
		return m.st.dim.Render(icon)
	}
}

func (m *dashModel) viewNudge() string {
	if m.nudgeTarget == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.st.title.Render("  Nudge Agent"))
	b.WriteString("\n")
	b.WriteString(m.st.header.Render("  ─────────────────────────────────────────"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Target: %s\n", m.nudgeTarget.Key))
	b.WriteString(fmt.Sprintf("  Workdir: %s\n", m.nudgeTarget.WorkDir))
	b.WriteString("\n")
	b.WriteString(m.st.dim.Render("  Enter=send  Escape=cancel"))
	b.WriteString("\n\n")
	b.WriteString("  " + m.textInput.View())
	b.WriteString("\n")

	return b.String()
}

// truncate cuts a string to at most maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// truncateLeft keeps the tail of a path-like string, which carries the
// distinguishing part of a workdir.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}

// formatAge renders a duration as a compact single unit (e.g. "42s", "3m").
func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
