package tui

import "testing"

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"single", []float64{5}, 10, "▁"},
		{"flat", []float64{3, 3, 3}, 10, "▁▁▁"},
		{"ramp", []float64{0, 1, 2, 3, 4, 5, 6, 7}, 10, "▁▂▃▄▅▆▇█"},
		{"extremes", []float64{0, 100}, 10, "▁█"},
		{"width caps to newest", []float64{0, 0, 0, 1, 2}, 2, "▁█"},
		{"no cap when width zero", []float64{0, 1}, 0, "▁█"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sparkline(tt.values, tt.width); got != tt.want {
				t.Errorf("sparkline(%v, %d) = %q, want %q", tt.values, tt.width, got, tt.want)
			}
		})
	}
}
