package core

import "context"

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Sink receives one telemetry record per completed operation and
// forwards it to wherever telemetry goes (console, OTLP collector).
// Implementations must be safe for concurrent use: the dispatcher and
// the load generator emit from separate goroutines.
//
// Emission failures are reported, never fatal: callers log and move on
// so a broken telemetry pipeline cannot take the service down.
type Sink interface {
	Emit(ctx context.Context, rec Record) error
	Shutdown(ctx context.Context) error
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpSink provides a no-op sink implementation. Components receive it
// when telemetry is disabled or failed to initialize, so emission call
// sites never need a nil check.
type NoOpSink struct{}

func (n *NoOpSink) Emit(ctx context.Context, rec Record) error { return nil }
func (n *NoOpSink) Shutdown(ctx context.Context) error         { return nil }
