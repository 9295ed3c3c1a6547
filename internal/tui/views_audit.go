package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderAudit shows the promotion audit log, newest first.
func (m Model) renderAudit() string {
	s := m.models

	lines := []string{theme.StyleHeader.Render("  Promotion Audit")}

	if len(s.Audit) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No audit events"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	const (
		colTime     = 10
		colModel    = 22
		colDecision = 10
		colCategory = 14
		colReason   = 34
	)

	header := fmt.Sprintf("  %-*s %-*s %-*s %-*s %-*s",
		colTime, "Time",
		colModel, "Model",
		colDecision, "Decision",
		colCategory, "Category",
		colReason, "Reason",
	)
	lines = append(lines,
		theme.StyleDimmed.Render(header),
		theme.StyleDimmed.Render("  "+strings.Repeat("─", colTime+colModel+colDecision+colCategory+colReason+4)),
	)

	for i, ev := range s.Audit {
		selected := m.tab == TabAudit && i == m.selected

		line := fmt.Sprintf("%s%-*s %-*s ",
			cursor(selected),
			colTime, fmtEpoch(ev.TS),
			colModel, truncate(ev.ModelID, colModel-1),
		)
		line += lipgloss.NewStyle().Foreground(theme.DecisionColor(ev.Decision)).Render(
			fmt.Sprintf("%-*s", colDecision, ev.Decision))
		line += fmt.Sprintf(" %-*s %-*s",
			colCategory, truncate(ev.ReasonCategory, colCategory-1),
			colReason, truncate(ev.Reason, colReason-1),
		)

		if selected {
			line = theme.StyleSelected.Render(line)
			if deltas := fmtDeltas(ev.Deltas); deltas != "" {
				line += "\n" + theme.StyleDimmed.Render("    deltas: "+deltas)
			}
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fmtDeltas renders metric deltas in stable name order.
func fmtDeltas(deltas map[string]*float64) string {
	if len(deltas) == 0 {
		return ""
	}
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if deltas[name] == nil {
			parts = append(parts, name+"=-")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%+.4f", name, *deltas[name]))
	}
	return strings.Join(parts, " ")
}
