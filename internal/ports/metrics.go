package ports

import "context"

// MetricsPort records operational counters, gauges and analytics events.
type MetricsPort interface {
	// IncCounter adds delta to the named counter.
	IncCounter(name string, tags map[string]string, delta int64)
	// SetGauge sets the named gauge to value.
	SetGauge(name string, tags map[string]string, value float64)
	// RecordEvent publishes a named analytics event with string properties.
	// Implementations must not block on delivery.
	RecordEvent(ctx context.Context, name string, properties map[string]string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) IncCounter(string, map[string]string, int64) {}
func (NopMetrics) SetGauge(string, map[string]string, float64) {}
func (NopMetrics) RecordEvent(context.Context, string, map[string]string) {}

var _ MetricsPort = NopMetrics{}
