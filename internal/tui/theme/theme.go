// Package theme provides the Lip Gloss color palette and reusable styles
// for the admin console TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Freshness colors.
var (
	ColorFresh   = lipgloss.Color("#22c55e")
	ColorNormal  = lipgloss.Color("#d97706")
	ColorStale   = lipgloss.Color("#dc2626")
	ColorUnknown = lipgloss.Color("#6b7280")
)

// Run status colors.
var (
	ColorRunning = lipgloss.Color("#2563eb")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
)

// Drift colors.
var (
	ColorDrifting = lipgloss.Color("#dc2626")
	ColorSteady   = lipgloss.Color("#22c55e")
	ColorNoData   = lipgloss.Color("#6b7280")
)

// Promotion decision colors.
var (
	ColorPromoted = lipgloss.Color("#16a34a")
	ColorSkipped  = lipgloss.Color("#9ca3af")
	ColorFailed   = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#06b6d4")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleTabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1)

	StyleTabInactive = lipgloss.NewStyle().
				Foreground(ColorDimmed).
				Padding(0, 1)

	StyleNotice = lipgloss.NewStyle().
			Foreground(ColorWarning)
)

// FreshnessColor maps a freshness label to its color.
func FreshnessColor(freshness string) lipgloss.Color {
	switch freshness {
	case "fresh":
		return ColorFresh
	case "normal":
		return ColorNormal
	case "stale":
		return ColorStale
	default:
		return ColorUnknown
	}
}

// FreshnessGlyph returns a badge glyph for a freshness label.
func FreshnessGlyph(freshness string) string {
	switch freshness {
	case "fresh":
		return "●"
	case "normal":
		return "◐"
	case "stale":
		return "○"
	default:
		return "·"
	}
}

// RunStatusColor maps a run status to its color.
func RunStatusColor(status string) lipgloss.Color {
	switch status {
	case "running":
		return ColorRunning
	case "success":
		return ColorSuccess
	case "error":
		return ColorError
	default:
		return ColorDimmed
	}
}

// DecisionColor maps a promotion audit decision to its color.
func DecisionColor(decision string) lipgloss.Color {
	switch decision {
	case "promoted":
		return ColorPromoted
	case "skipped":
		return ColorSkipped
	case "error":
		return ColorFailed
	default:
		return ColorDimmed
	}
}
