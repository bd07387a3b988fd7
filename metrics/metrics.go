// Package metrics defines the recorder surface for payment telemetry.
package metrics

import "time"

// Event counter names recorded by the client.
const (
	EventPaymentAttempt = "payment_attempt"
	EventPaymentSuccess = "payment_success"
	EventPaymentFailure = "payment_failure"
	EventPaymentDryRun  = "payment_dry_run"
)

// Operation names for latency observations.
const OpAuthorize = "authorize"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
