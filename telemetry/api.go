// Package telemetry turns simulated operation records into
// OpenTelemetry signals: spans with backdated timestamps, operation
// metrics, and exporters selected by configuration profile.
//
// The package-level metric helpers follow progressive disclosure:
// Counter, UpDown, Histogram, and Duration cover the common cases with
// simple label pairs, while MetricInstruments gives direct instrument
// control when needed. The helpers are no-ops until Init binds them to
// a pipeline, so library code can call them unconditionally.
package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// globalInstruments is bound by Init. Until then the package-level
// helpers silently drop their values.
var globalInstruments atomic.Pointer[MetricInstruments]

func setGlobalInstruments(m *MetricInstruments) {
	globalInstruments.Store(m)
}

// Counter increments a counter metric by 1.
// Labels should be provided as key-value pairs.
// Example: Counter(MetricLoadGenTicks, "kind", "service")
func Counter(name string, labels ...string) {
	m := globalInstruments.Load()
	if m == nil {
		return
	}
	_ = m.RecordCounter(context.Background(), name, 1,
		metric.WithAttributes(labelAttributes(labels...)...))
}

// UpDown adjusts a metric that can rise and fall, like in-flight work.
// Example: UpDown(MetricLoadGenInflight, 1) ... UpDown(MetricLoadGenInflight, -1)
func UpDown(name string, delta int64, labels ...string) {
	m := globalInstruments.Load()
	if m == nil {
		return
	}
	_ = m.RecordUpDownCounter(context.Background(), name, delta,
		metric.WithAttributes(labelAttributes(labels...)...))
}

// Histogram records a value in a distribution.
// Example: Histogram(MetricOperationDuration, 125.3, "kind", "service")
func Histogram(name string, value float64, labels ...string) {
	m := globalInstruments.Load()
	if m == nil {
		return
	}
	_ = m.RecordHistogram(context.Background(), name, value,
		metric.WithAttributes(labelAttributes(labels...)...))
}

// Duration records elapsed time since startTime in milliseconds.
// Example:
//
//	start := time.Now()
//	defer Duration("opsim.loadgen.tick_duration", start)
func Duration(name string, startTime time.Time, labels ...string) {
	Histogram(name, float64(time.Since(startTime).Milliseconds()), labels...)
}

// labelAttributes converts key-value label pairs to attributes.
// A trailing key without a value is dropped.
func labelAttributes(labels ...string) []attribute.KeyValue {
	if len(labels) < 2 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
