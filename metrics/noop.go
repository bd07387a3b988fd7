package metrics

import "time"

// NoopRecorder discards all payment telemetry. It is the default recorder
// for clients constructed without WithMetrics.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
