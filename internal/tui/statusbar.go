package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/poll"
	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderStatusBar shows the connection badge, per-source freshness, and the
// refresh cadence in a single bordered row.
func (m Model) renderStatusBar() string {
	width := m.width
	if width < 40 {
		width = 40
	}

	segStyle := lipgloss.NewStyle().Padding(0, 1)

	var stream string
	if m.runs.StreamConnected {
		stream = segStyle.Foreground(theme.ColorHealthy).Render("stream ●")
	} else {
		stream = segStyle.Foreground(theme.ColorDanger).Render(
			fmt.Sprintf("stream ○ (rc %d)", m.runs.Reconnects))
	}

	segments := []string{
		segStyle.Foreground(theme.ColorAccent).Bold(true).Render("quantadmin"),
		stream,
		freshnessBadge("drift", m.drift.Freshness),
		freshnessBadge("runs", m.runs.Freshness),
		freshnessBadge("models", m.models.Freshness),
		freshnessBadge("health", m.health.Freshness),
		segStyle.Foreground(theme.ColorDimmed).Render(refreshLabel(m.autoRefresh, m.interval)),
	}

	content := strings.Join(segments,
		lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|"))

	return lipgloss.NewStyle().
		Width(width).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func freshnessBadge(name string, f poll.Freshness) string {
	label := f.String()
	return lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(theme.FreshnessColor(label)).
		Render(theme.FreshnessGlyph(label) + " " + name)
}

func refreshLabel(auto bool, interval time.Duration) string {
	if !auto {
		return "paused"
	}
	return "every " + interval.String()
}
