package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/app"
	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderHealth shows ingestion and seed status plus the scraped gauges with
// per-gauge history sparklines.
func (m Model) renderHealth() string {
	s := m.health

	lines := []string{theme.StyleHeader.Render("  System Health")}
	if s.LastError != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Render("  last error: "+truncate(s.LastError, 70)))
	}

	lines = append(lines, m.renderIngestion(), m.renderSeed())

	if len(s.Gauges) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No metrics yet"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	const (
		colName  = 34
		colValue = 12
	)

	header := fmt.Sprintf("  %-*s %*s  %s", colName, "Gauge", colValue, "Value", "Trend")
	lines = append(lines,
		"",
		theme.StyleDimmed.Render(header),
		theme.StyleDimmed.Render("  "+strings.Repeat("─", colName+colValue+32)),
	)

	names := make([]string, 0, len(s.Gauges))
	for name := range s.Gauges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		trend := sparkline(gaugeHistory(s.History, name), 30)
		lines = append(lines, fmt.Sprintf("  %-*s %*s  %s",
			colName, truncate(name, colName-1),
			colValue, fmt.Sprintf("%.3f", s.Gauges[name]),
			theme.StyleDimmed.Render(trend)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderIngestion() string {
	ing := m.health.Ingestion
	if ing == nil {
		return theme.StyleDimmed.Render("  ingestion: unknown")
	}

	lag := "lag -"
	if v, ok := ing.Lag(); ok {
		lag = fmt.Sprintf("lag %.1fs", v)
	}

	if m.health.IngestionStale {
		return lipgloss.NewStyle().Foreground(theme.ColorDanger).
			Render("  ingestion: STALE  " + lag)
	}
	return lipgloss.NewStyle().Foreground(theme.ColorHealthy).
		Render("  ingestion: ok  " + lag)
}

func (m Model) renderSeed() string {
	seed := m.health.Seed
	if seed == nil {
		return theme.StyleDimmed.Render("  seed: unknown")
	}
	if seed.Active {
		return lipgloss.NewStyle().Foreground(theme.ColorRunning).
			Render(fmt.Sprintf("  seed: active (%.0fs)", seed.DurationSeconds))
	}

	last := "never"
	if seed.LastExitTS != nil {
		last = fmtEpoch(*seed.LastExitTS)
	}
	return theme.StyleDimmed.Render("  seed: idle, last exit " + last)
}

// gaugeHistory extracts one gauge's series from the snapshot history.
func gaugeHistory(history []app.MetricPoint, name string) []float64 {
	vals := make([]float64, 0, len(history))
	for _, p := range history {
		if v, ok := p.Values[name]; ok {
			vals = append(vals, v)
		}
	}
	return vals
}
