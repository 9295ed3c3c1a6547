package poll

import "time"

// Freshness classifies how long ago a data source last produced a successful
// update, relative to configured freshness bands.
type Freshness int

const (
	// FreshnessUnknown means no update has ever been recorded.
	FreshnessUnknown Freshness = iota
	// FreshnessFresh means the last update is within the fresh threshold.
	FreshnessFresh
	// FreshnessNormal sits between the fresh and stale thresholds.
	FreshnessNormal
	// FreshnessStale means the last update is older than the stale threshold.
	FreshnessStale
)

func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessNormal:
		return "normal"
	case FreshnessStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Classify derives a freshness label from the last update time. It is a pure
// function of its inputs: increasing age never moves the result back toward
// fresh. A zero lastUpdate means no update was ever recorded.
func Classify(lastUpdate, now time.Time, freshThreshold, staleThreshold time.Duration) Freshness {
	if lastUpdate.IsZero() {
		return FreshnessUnknown
	}

	age := now.Sub(lastUpdate)
	switch {
	case age <= freshThreshold:
		return FreshnessFresh
	case age > staleThreshold:
		return FreshnessStale
	default:
		return FreshnessNormal
	}
}
