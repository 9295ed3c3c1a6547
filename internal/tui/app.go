package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/app"
	"github.com/wooyoung7703/pro11-sub001/internal/prefs"
	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// Tab identifies which panel is active.
type Tab int

const (
	TabDrift Tab = iota
	TabRuns
	TabModels
	TabHealth
	TabAudit

	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabDrift:
		return "Drift"
	case TabRuns:
		return "Runs"
	case TabModels:
		return "Models"
	case TabHealth:
		return "Health"
	case TabAudit:
		return "Audit"
	default:
		return "?"
	}
}

// Preference keys. The suffix is a schema version: incompatible layout
// changes bump it and leave the old entry behind rather than migrating.
const (
	prefKeyUI    = "ui_prefs_v1"
	prefKeyDrift = "feature_drift_prefs_v2"
)

type uiPrefs struct {
	Tab         int  `json:"tab"`
	AutoRefresh bool `json:"auto_refresh"`
	IntervalSec int  `json:"refresh_interval_sec"`
}

type driftPrefs struct {
	Threshold float64 `json:"threshold"`
}

// Poll interval bounds reachable with +/-.
const (
	minInterval = 2 * time.Second
	maxInterval = 5 * time.Minute
)

type tickMsg time.Time

// actionResultMsg reports a completed promote/rollback/delete.
type actionResultMsg struct {
	notice string
	err    error
}

// confirmState is a pending destructive action awaiting y/esc.
type confirmState struct {
	action  string // "promote", "rollback", "delete"
	modelID string
}

// Model is the root Bubble Tea model.
type Model struct {
	runner *app.Runner
	prefs  *prefs.Store
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	tab         Tab
	selected    int
	confirm     *confirmState
	autoRefresh bool
	interval    time.Duration
	notice      string
	noticeAt    time.Time

	// Snapshots pulled once per tick so every view renders one consistent
	// moment.
	drift  app.DriftSnapshot
	runs   app.RunSnapshot
	models app.ModelSnapshot
	health app.HealthSnapshot
}

// New creates the root model. The runner must already be started; stored
// preferences for tab, refresh cadence and drift threshold are applied here.
func New(runner *app.Runner, store *prefs.Store) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		runner:      runner,
		prefs:       store,
		ctx:         ctx,
		cancel:      cancel,
		keys:        DefaultKeyMap(),
		autoRefresh: true,
		interval:    runner.Config().Poll.DriftInterval,
	}

	var ui uiPrefs
	if store.GetJSON(prefKeyUI, &ui) {
		if ui.Tab >= 0 && Tab(ui.Tab) < tabCount {
			m.tab = Tab(ui.Tab)
		}
		m.autoRefresh = ui.AutoRefresh
		if ui.IntervalSec > 0 {
			m.interval = time.Duration(ui.IntervalSec) * time.Second
			m.applyInterval()
		}
	}

	var dp driftPrefs
	if store.GetJSON(prefKeyDrift, &dp) && dp.Threshold > 0 {
		runner.Drift().SetThreshold(dp.Threshold)
	}

	// A session that quit while paused comes back paused.
	if !m.autoRefresh {
		runner.Stop()
	}

	return m
}

// Init starts the snapshot tick.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.drift = m.runner.Drift().Snapshot()
		m.runs = m.runner.Runs().Snapshot()
		m.models = m.runner.Models().Snapshot()
		m.health = m.runner.Health().Snapshot()
		m.clampSelection()
		if m.notice != "" && time.Since(m.noticeAt) > 5*time.Second {
			m.notice = ""
		}
		return m, tickCmd()

	case actionResultMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("✗ %v", msg.err))
		} else {
			m.setNotice(msg.notice)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			pending := *m.confirm
			m.confirm = nil
			return m, m.executeAction(pending)
		case key.Matches(msg, m.keys.Escape):
			m.confirm = nil
			return m, nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if n := m.rowCount(); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if n := m.rowCount(); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.setTab((m.tab + 1) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.ShiftTab):
		m.setTab((m.tab - 1 + tabCount) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.Tab1):
		m.setTab(TabDrift)
		return m, nil
	case key.Matches(msg, m.keys.Tab2):
		m.setTab(TabRuns)
		return m, nil
	case key.Matches(msg, m.keys.Tab3):
		m.setTab(TabModels)
		return m, nil
	case key.Matches(msg, m.keys.Tab4):
		m.setTab(TabHealth)
		return m, nil
	case key.Matches(msg, m.keys.Tab5):
		m.setTab(TabAudit)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.AutoRefresh):
		m.autoRefresh = !m.autoRefresh
		if m.autoRefresh {
			m.runner.Start(m.ctx)
			m.setNotice("auto-refresh on")
		} else {
			m.runner.Stop()
			m.setNotice("auto-refresh paused")
		}
		m.saveUIPrefs()
		return m, nil

	case key.Matches(msg, m.keys.Faster):
		m.adjustInterval(-5 * time.Second)
		return m, nil

	case key.Matches(msg, m.keys.Slower):
		m.adjustInterval(5 * time.Second)
		return m, nil

	case key.Matches(msg, m.keys.Promote):
		if id, ok := m.selectedModelID(); ok {
			m.confirm = &confirmState{action: "promote", modelID: id}
		}
		return m, nil

	case key.Matches(msg, m.keys.Rollback):
		if id, ok := m.selectedModelID(); ok {
			m.confirm = &confirmState{action: "rollback", modelID: id}
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.selectedModelID(); ok {
			m.confirm = &confirmState{action: "delete", modelID: id}
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setTab(t Tab) {
	m.tab = t
	m.selected = 0
	m.saveUIPrefs()
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeAt = time.Now()
}

// rowCount is the number of selectable rows on the active tab.
func (m Model) rowCount() int {
	switch m.tab {
	case TabDrift:
		return len(m.drift.Rows)
	case TabRuns:
		return len(m.runs.Runs)
	case TabModels:
		return len(m.models.Summary.Recent)
	case TabAudit:
		return len(m.models.Audit)
	default:
		return 0
	}
}

func (m *Model) clampSelection() {
	if n := m.rowCount(); m.selected >= n {
		m.selected = 0
	}
}

// selectedModelID resolves the model under the cursor on the Models tab.
func (m Model) selectedModelID() (string, bool) {
	if m.tab != TabModels {
		return "", false
	}
	recent := m.models.Summary.Recent
	if m.selected < 0 || m.selected >= len(recent) {
		return "", false
	}
	return recent[m.selected].ID, true
}

// refreshCmd forces an immediate fetch of the active tab's source.
func (m Model) refreshCmd() tea.Cmd {
	runner := m.runner
	ctx := m.ctx
	tab := m.tab
	return func() tea.Msg {
		switch tab {
		case TabDrift:
			runner.Drift().Scan(ctx)
		case TabRuns:
			runner.Runs().Refresh(ctx)
		case TabModels, TabAudit:
			runner.Models().Refresh(ctx)
		case TabHealth:
			runner.Health().Refresh(ctx)
		}
		return actionResultMsg{notice: "refreshed"}
	}
}

// executeAction runs a confirmed model action off the UI goroutine.
func (m Model) executeAction(pending confirmState) tea.Cmd {
	runner := m.runner
	ctx := m.ctx
	return func() tea.Msg {
		switch pending.action {
		case "promote":
			res, err := runner.Models().Promote(ctx, pending.modelID)
			if err != nil {
				return actionResultMsg{err: err}
			}
			if !res.Accepted() {
				return actionResultMsg{err: fmt.Errorf("promotion rejected: %s", nz(res.Reason, res.Status))}
			}
			return actionResultMsg{notice: "✓ promoted " + pending.modelID}
		case "rollback":
			res, err := runner.Models().Rollback(ctx, pending.modelID)
			if err != nil {
				return actionResultMsg{err: err}
			}
			if !res.Accepted() {
				return actionResultMsg{err: fmt.Errorf("rollback rejected: %s", nz(res.Reason, res.Status))}
			}
			return actionResultMsg{notice: "✓ rolled back " + pending.modelID}
		case "delete":
			if err := runner.Models().Delete(ctx, pending.modelID); err != nil {
				return actionResultMsg{err: err}
			}
			return actionResultMsg{notice: "✓ deleted " + pending.modelID}
		}
		return actionResultMsg{}
	}
}

func (m *Model) adjustInterval(delta time.Duration) {
	next := m.interval + delta
	if next < minInterval {
		next = minInterval
	}
	if next > maxInterval {
		next = maxInterval
	}
	if next == m.interval {
		return
	}
	m.interval = next
	m.applyInterval()
	m.saveUIPrefs()
	m.setNotice(fmt.Sprintf("poll interval %s", next))
}

// applyInterval re-arms every monitor with the shared cadence.
func (m *Model) applyInterval() {
	m.runner.Drift().SetInterval(m.interval)
	m.runner.Runs().SetInterval(m.interval)
	m.runner.Models().SetInterval(m.interval)
	m.runner.Health().SetInterval(m.interval)
}

func (m *Model) saveUIPrefs() {
	m.prefs.Set(prefKeyUI, uiPrefs{
		Tab:         int(m.tab),
		AutoRefresh: m.autoRefresh,
		IntervalSec: int(m.interval / time.Second),
	})
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.tab {
	case TabDrift:
		body = m.renderDrift()
	case TabRuns:
		body = m.renderRuns()
	case TabModels:
		body = m.renderModels()
	case TabHealth:
		body = m.renderHealth()
	case TabAudit:
		body = m.renderAudit()
	}

	sections := []string{
		m.renderStatusBar(),
		m.renderTabs(),
		body,
	}

	if m.confirm != nil {
		sections = append(sections, m.renderConfirm())
	}
	if m.notice != "" {
		sections = append(sections, theme.StyleNotice.Render("  "+m.notice))
	}

	sections = append(sections, theme.StyleDimmed.Render(
		"  j/k:rows  tab/1-5:panels  r:refresh  a:auto  +/-:interval  p:promote  b:rollback  x:delete  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	var tabs []string
	for t := Tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", int(t)+1, t)
		if t == m.tab {
			tabs = append(tabs, theme.StyleTabActive.Render("["+label+"]"))
		} else {
			tabs = append(tabs, theme.StyleTabInactive.Render(" "+label+" "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderConfirm() string {
	c := m.confirm
	prompt := fmt.Sprintf("  %s model %s? (y/esc)", c.action, c.modelID)
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWarning).
		Render(prompt)
}

func nz(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
