package tui

import (
	"fmt"
	"time"
)

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	if max <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// fmtFloat renders a nullable metric; "-" when absent.
func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

// fmtEpoch renders a backend epoch-seconds timestamp as local clock time.
func fmtEpoch(ts float64) string {
	if ts <= 0 {
		return "-"
	}
	sec := int64(ts)
	return time.Unix(sec, 0).Format("15:04:05")
}

// fmtAge renders how long ago t was; "-" when t is zero.
func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String() + " ago"
}

// cursor returns the row prefix for the selected row.
func cursor(selected bool) string {
	if selected {
		return "> "
	}
	return "  "
}
