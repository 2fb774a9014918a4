package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsimlab/opsim/core"
)

// OTelSink renders operation records as OpenTelemetry spans and
// metrics. Every record becomes one span backdated to the record's
// start time, with child events rendered as sub-spans (when they carry
// a duration) or span events (when they are instants).
type OTelSink struct {
	tracer      trace.Tracer
	instruments *MetricInstruments
	logger      core.Logger
}

var _ core.Sink = (*OTelSink)(nil)

// NewSink creates a sink bound to the provider's tracer and meter.
func NewSink(provider *Provider, logger core.Logger) (*OTelSink, error) {
	if provider == nil {
		return nil, &core.OperationError{
			Op:  "telemetry.NewSink",
			Err: core.ErrSinkUnavailable,
		}
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &OTelSink{
		tracer:      provider.Tracer(),
		instruments: NewMetricInstruments(provider.Meter()),
		logger:      logger,
	}, nil
}

// Emit converts one record into a span tree plus operation metrics.
// Span timestamps are taken from the record, not the clock, so the
// exported trace shows the simulated timing. Each record starts its
// own trace; the serving span from otelhttp stays separate.
func (s *OTelSink) Emit(ctx context.Context, rec core.Record) error {
	spanCtx := trace.ContextWithSpanContext(ctx, trace.SpanContext{})

	spanKind := trace.SpanKindServer
	if rec.Origin == core.OriginLoadGen {
		spanKind = trace.SpanKindInternal
	}

	spanCtx, span := s.tracer.Start(spanCtx, "opsim."+string(rec.Kind),
		trace.WithTimestamp(rec.Start),
		trace.WithSpanKind(spanKind),
		trace.WithAttributes(
			attribute.String("opsim.request.id", rec.ID),
			attribute.String("opsim.origin", rec.Origin),
		),
	)
	span.SetAttributes(toAttributes(rec.Attributes)...)

	for _, ev := range rec.Events {
		start := rec.Start.Add(ev.Offset)
		if ev.Duration > 0 {
			_, child := s.tracer.Start(spanCtx, ev.Name,
				trace.WithTimestamp(start),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(toAttributes(ev.Attributes)...),
			)
			child.End(trace.WithTimestamp(start.Add(ev.Duration)))
		} else {
			span.AddEvent(ev.Name,
				trace.WithTimestamp(start),
				trace.WithAttributes(toAttributes(ev.Attributes)...),
			)
		}
	}

	if rec.Outcome == core.OutcomeFailure {
		reason, _ := rec.Attributes["failure.reason"].(string)
		span.SetStatus(codes.Error, reason)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(rec.End()))

	s.recordMetrics(ctx, rec)
	return nil
}

// Shutdown is a no-op: the Provider owns the export pipeline and
// flushes it on its own Shutdown.
func (s *OTelSink) Shutdown(ctx context.Context) error {
	return nil
}

func (s *OTelSink) recordMetrics(ctx context.Context, rec core.Record) {
	kind := attribute.String("kind", string(rec.Kind))

	if err := s.instruments.RecordCounter(ctx, MetricOperationsTotal, 1,
		metric.WithAttributes(kind,
			attribute.String("outcome", string(rec.Outcome)),
			attribute.String("origin", rec.Origin),
		)); err != nil {
		s.logger.Error("Failed to record operation counter", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := s.instruments.RecordHistogram(ctx, MetricOperationDuration,
		float64(rec.Latency.Milliseconds()),
		metric.WithAttributes(kind)); err != nil {
		s.logger.Error("Failed to record operation duration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if rec.Outcome == core.OutcomeFailure {
		reason, _ := rec.Attributes["failure.reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		if err := s.instruments.RecordCounter(ctx, MetricOperationFailures, 1,
			metric.WithAttributes(kind, attribute.String("reason", reason))); err != nil {
			s.logger.Error("Failed to record failure counter", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// toAttributes converts a record's free-form attributes into typed
// OTel attributes, sorted by key for stable exports.
func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, toAttribute(k, m[k]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
