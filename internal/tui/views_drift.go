package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderDrift shows the feature drift table with the scan summary and a
// sparkline of recent max |z| values.
func (m Model) renderDrift() string {
	s := m.drift

	summary := fmt.Sprintf("  %d/%d drifting  max|z| %.2f  threshold %.2f  scans %d",
		s.Summary.DriftCount, s.Summary.Total, s.Summary.MaxAbsZ,
		s.AppliedThreshold, s.ScanCount)
	if len(s.History) > 1 {
		vals := make([]float64, len(s.History))
		for i, p := range s.History {
			vals[i] = p.MaxAbsZ
		}
		summary += "  " + sparkline(vals, 30)
	}

	lines := []string{
		theme.StyleHeader.Render("  Feature Drift"),
		theme.StyleDimmed.Render(summary),
	}

	if s.ThresholdMismatch {
		lines = append(lines, lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWarning).
			Render(fmt.Sprintf("  ⚠ server applied threshold %.2f, requested %.2f",
				s.AppliedThreshold, s.RequestedThreshold)))
	}
	if s.LastError != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Render("  last error: "+truncate(s.LastError, 70)))
	}

	if len(s.Rows) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No scan results yet"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	const (
		colName     = 18
		colZ        = 9
		colBaseline = 11
		colRecent   = 11
		colSamples  = 10
		colState    = 10
	)

	header := fmt.Sprintf("  %-*s %*s %*s %*s %*s %-*s",
		colName, "Feature",
		colZ, "Z",
		colBaseline, "Baseline",
		colRecent, "Recent",
		colSamples, "N (b/r)",
		colState, "State",
	)
	lines = append(lines,
		theme.StyleDimmed.Render(header),
		theme.StyleDimmed.Render("  "+strings.Repeat("─", colName+colZ+colBaseline+colRecent+colSamples+colState+5)),
	)

	for i, row := range s.Rows {
		selected := m.tab == TabDrift && i == m.selected

		z := "-"
		if row.ZScore != nil {
			z = fmt.Sprintf("%.2f", *row.ZScore)
		}

		state, stateColor := "steady", theme.ColorSteady
		if row.Drifting {
			state, stateColor = "drifting", theme.ColorDrifting
		} else if row.ZScore == nil {
			state, stateColor = "no data", theme.ColorNoData
		}

		line := fmt.Sprintf("%s%-*s %*s %*s %*s %*s ",
			cursor(selected),
			colName, truncate(row.Name, colName-1),
			colZ, z,
			colBaseline, fmtFloat(row.BaselineMean),
			colRecent, fmtFloat(row.RecentMean),
			colSamples, fmt.Sprintf("%d/%d", row.NBaseline, row.NRecent),
		)
		line += lipgloss.NewStyle().Foreground(stateColor).Render(
			fmt.Sprintf("%-*s", colState, state))

		if selected {
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
