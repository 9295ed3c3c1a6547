package adminapi

import (
	"context"
	"regexp"
	"strconv"
)

// number matches Prometheus sample values including scientific notation and
// the signed special values the text format allows.
const number = `[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`

// GaugeValue extracts the named metric's value from Prometheus text
// exposition. The match is anchored to the metric name at line start and
// tolerates an optional label set between the name and the value. When the
// metric appears with several label sets, the last sample wins.
func GaugeValue(text, name string) (float64, bool) {
	re, err := regexp.Compile(`(?m)^` + regexp.QuoteMeta(name) + `(?:\{[^}]*\})?\s+(` + number + `)\s*$`)
	if err != nil {
		return 0, false
	}

	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Gauges fetches /metrics once and extracts the named gauges. Metrics absent
// from the exposition are simply missing from the result map.
func (c *Client) Gauges(ctx context.Context, names []string) (map[string]float64, error) {
	text, err := c.MetricsText(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(names))
	for _, name := range names {
		if v, ok := GaugeValue(text, name); ok {
			out[name] = v
		}
	}
	return out, nil
}
