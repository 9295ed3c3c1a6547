package notifier

import (
	"time"
)

// AlertKind indicates which monitor raised an alert.
type AlertKind string

const (
	AlertKindDrift          AlertKind = "feature_drift"   // feature newly crossed the drift threshold
	AlertKindBackfillFailed AlertKind = "backfill_failed" // backfill run entered error status
	AlertKindStreamStale    AlertKind = "stream_stale"    // run stream heartbeat silence
	AlertKindPromotion      AlertKind = "promotion"       // promotion audit decision observed
	AlertKindIngestionStale AlertKind = "ingestion_stale" // candle ingestion lag over threshold
)

// Severity ranks an alert for channel formatting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Field is one labeled value rendered in the notification body.
type Field struct {
	Name  string
	Value string
}

// OpsAlert is a monitoring alert destined for the notification channels.
type OpsAlert struct {
	Kind     AlertKind
	Severity Severity
	Title    string
	Summary  string
	Fields   []Field

	// Drift details
	Feature   string
	ZScore    float64
	Threshold float64

	// Run details
	RunID  int64
	Symbol string

	// Promotion details
	ModelID        string
	Decision       string
	Reason         string
	ReasonCategory string

	Timestamp time.Time
}

// Notifier is the interface for sending ops alerts to a channel.
type Notifier interface {
	// SendAlert sends an ops alert notification. Implementations swallow
	// their own delivery errors; a lost notification never fails a poll.
	SendAlert(alert OpsAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
// Nil entries are filtered out.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendAlert(alert OpsAlert) {
	for _, n := range m.notifiers {
		n.SendAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
