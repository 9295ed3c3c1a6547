package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/internal/tui/theme"
)

// renderModels shows the production model, the recent registry rows, and the
// latest production history.
func (m Model) renderModels() string {
	s := m.models

	lines := []string{theme.StyleHeader.Render("  Model Registry")}

	if s.Alert.InCooldown {
		until := fmtEpoch(s.Alert.NextAllowedTS)
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorWarning).
			Render("  ⚠ promotion alert cooldown active until "+until))
	}
	if s.LastError != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Render("  last error: "+truncate(s.LastError, 70)))
	}

	if prod := s.Summary.Production; prod != nil {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(theme.ColorPromoted).
			Render(fmt.Sprintf("  ★ production: %s %s v%s (%s)",
				truncate(prod.ID, 20), prod.Name, prod.Version, prod.ModelType)))
	} else if !s.Summary.HasModel {
		lines = append(lines, theme.StyleDimmed.Render("  No production model"))
	}

	if len(s.Summary.Recent) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No models"))
	} else {
		lines = append(lines, m.renderModelTable(s.Summary.Recent)...)
	}

	if len(s.History) > 0 {
		lines = append(lines, "", theme.StyleHeader.Render("  Production History"))
		limit := len(s.History)
		if limit > 5 {
			limit = 5
		}
		for _, h := range s.History[:limit] {
			lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf(
				"  %s  %-9s %s v%s",
				fmtEpoch(h.TS), h.Action, truncate(h.ModelID, 20), h.Version)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderModelTable(recent []adminapi.ModelRow) []string {
	const (
		colID      = 22
		colName    = 16
		colType    = 10
		colVersion = 9
		colCreated = 18
		colMetrics = 28
	)

	header := fmt.Sprintf("  %-*s %-*s %-*s %-*s %-*s %-*s",
		colID, "ID",
		colName, "Name",
		colType, "Type",
		colVersion, "Version",
		colCreated, "Created",
		colMetrics, "Metrics",
	)
	lines := []string{
		theme.StyleDimmed.Render(header),
		theme.StyleDimmed.Render("  " + strings.Repeat("─", colID+colName+colType+colVersion+colCreated+colMetrics+5)),
	}

	prodID := ""
	if m.models.Summary.Production != nil {
		prodID = m.models.Summary.Production.ID
	}

	for i, row := range recent {
		selected := m.tab == TabModels && i == m.selected

		id := truncate(row.ID, colID-3)
		if row.ID == prodID {
			id = "★ " + id
		}

		line := fmt.Sprintf("%s%-*s %-*s %-*s %-*s %-*s %-*s",
			cursor(selected),
			colID, id,
			colName, truncate(row.Name, colName-1),
			colType, truncate(row.ModelType, colType-1),
			colVersion, truncate(row.Version, colVersion-1),
			colCreated, fmtCreatedAt(row.CreatedAt),
			colMetrics, truncate(fmtMetrics(row.Metrics), colMetrics-1),
		)

		if selected {
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}

	return lines
}

// fmtMetrics renders model metrics in stable name order.
func fmtMetrics(metrics map[string]*float64) string {
	if len(metrics) == 0 {
		return "-"
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+fmtFloat(metrics[name]))
	}
	return strings.Join(parts, " ")
}

func fmtCreatedAt(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02 15:04")
	}
	if s == "" {
		return "-"
	}
	return s
}
