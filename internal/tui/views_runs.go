package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/internal/app"
	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderRuns shows the backfill run table, newest first, with live progress
// and ETA for running jobs.
func (m Model) renderRuns() string {
	s := m.runs

	stats := fmt.Sprintf("  %d shown / %d total  stream msgs %d  last msg %s",
		len(s.Runs), s.Total, s.StreamStats.MessageCount,
		fmtAge(s.StreamStats.LastMessageAt))

	lines := []string{
		theme.StyleHeader.Render("  Backfill Runs"),
		theme.StyleDimmed.Render(stats),
	}
	if s.LastError != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Render("  last error: "+truncate(s.LastError, 70)))
	}

	if len(s.Runs) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No runs"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	const (
		colID       = 7
		colSymbol   = 10
		colInterval = 8
		colStatus   = 9
		colProgress = 16
		colETA      = 9
		colStarted  = 20
	)

	header := fmt.Sprintf("  %-*s %-*s %-*s %-*s %-*s %*s %-*s",
		colID, "ID",
		colSymbol, "Symbol",
		colInterval, "Interval",
		colStatus, "Status",
		colProgress, "Progress",
		colETA, "ETA",
		colStarted, "Started",
	)
	lines = append(lines,
		theme.StyleDimmed.Render(header),
		theme.StyleDimmed.Render("  "+strings.Repeat("─", colID+colSymbol+colInterval+colStatus+colProgress+colETA+colStarted+6)),
	)

	for i, row := range s.Runs {
		selected := m.tab == TabRuns && i == m.selected

		line := fmt.Sprintf("%s%-*d %-*s %-*s ",
			cursor(selected),
			colID, row.ID,
			colSymbol, truncate(row.Symbol, colSymbol-1),
			colInterval, truncate(row.Interval, colInterval-1),
		)
		line += lipgloss.NewStyle().Foreground(theme.RunStatusColor(row.Status)).Render(
			fmt.Sprintf("%-*s", colStatus, row.Status))
		line += fmt.Sprintf(" %-*s %*s %-*s",
			colProgress, runProgress(row),
			colETA, runETA(row),
			colStarted, truncate(row.StartedAt, colStarted-1),
		)

		if selected {
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func runProgress(row app.RunRow) string {
	if row.Inserted == nil {
		return "-"
	}
	if row.Target == nil || *row.Target <= 0 {
		return fmt.Sprintf("%d", *row.Inserted)
	}
	pct := float64(*row.Inserted) / float64(*row.Target) * 100
	return fmt.Sprintf("%d/%d (%.0f%%)", *row.Inserted, *row.Target, pct)
}

func runETA(row app.RunRow) string {
	if !row.ETA.Known {
		return "-"
	}
	return row.ETA.Remaining.Round(time.Second).String()
}
