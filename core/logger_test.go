package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, cfg LoggingConfig) (*ProductionLogger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("OPSIM_LOG_LEVEL", "")
	t.Setenv("OPSIM_LOG_FORMAT", "")
	t.Setenv("OPSIM_DEBUG", "")
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	logger := NewProductionLogger(cfg, "opsim-test")
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	return logger, buf
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(t, LoggingConfig{Level: "info", Format: "text"})

	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Info("shown", nil)
	assert.Contains(t, buf.String(), "[INFO]")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger.SetLevel("error")
	logger.Info("hidden too", nil)
	assert.Empty(t, buf.String())
	logger.Error("problem", nil)
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestLoggerDebugEnabled(t *testing.T) {
	logger, buf := newBufferedLogger(t, LoggingConfig{Level: "debug", Format: "text"})

	logger.Debug("verbose detail", map[string]interface{}{"step": 1})
	assert.Contains(t, buf.String(), "verbose detail")
	assert.Contains(t, buf.String(), "step=1")
}

func TestLoggerJSONFormat(t *testing.T) {
	logger, buf := newBufferedLogger(t, LoggingConfig{Level: "info", Format: "json"})

	logger.Info("Operation simulated", map[string]interface{}{
		"kind":       "service",
		"latency_ms": int64(123),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "opsim-test", entry["service"])
	assert.Equal(t, "Operation simulated", entry["message"])
	assert.Equal(t, "service", entry["kind"])
	assert.Equal(t, float64(123), entry["latency_ms"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLoggerTextCommonFieldsFirst(t *testing.T) {
	logger, buf := newBufferedLogger(t, LoggingConfig{Level: "info", Format: "text"})

	logger.Info("Operation simulated", map[string]interface{}{
		"zebra":      "last",
		"kind":       "trade_buy",
		"request_id": "trade_buy-abc123",
	})

	line := buf.String()
	assert.Less(t, strings.Index(line, "kind=trade_buy"), strings.Index(line, "zebra=last"))
	assert.Contains(t, line, "request_id=trade_buy-abc123")
}

func TestLoggerErrorRateLimit(t *testing.T) {
	logger, buf := newBufferedLogger(t, LoggingConfig{Level: "info", Format: "text"})

	for i := 0; i < 50; i++ {
		logger.Error("sink unavailable", nil)
	}

	// The limiter allows one error per second.
	assert.Equal(t, 1, strings.Count(buf.String(), "sink unavailable"))
}

func TestLoggerEnvOverrides(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("OPSIM_LOG_FORMAT", "")
	t.Setenv("OPSIM_DEBUG", "")
	t.Setenv("OPSIM_LOG_LEVEL", "debug")

	logger := NewProductionLogger(LoggingConfig{Level: "error", Format: "text"}, "opsim-test")
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)

	logger.Debug("env won", nil)
	assert.Contains(t, buf.String(), "env won")
}

func TestLoggerKubernetesDefaultsToJSON(t *testing.T) {
	t.Setenv("OPSIM_LOG_LEVEL", "")
	t.Setenv("OPSIM_LOG_FORMAT", "")
	t.Setenv("OPSIM_DEBUG", "")
	t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")

	logger := NewProductionLogger(LoggingConfig{Format: "auto"}, "opsim-test")
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)

	logger.Info("hello", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "auto format in k8s should be JSON: %s", buf.String())
}

func TestNoOpImplementations(t *testing.T) {
	// Must be safe to call with anything, including nil maps.
	logger := &NoOpLogger{}
	logger.Info("x", nil)
	logger.Error("x", map[string]interface{}{"k": "v"})
	logger.Warn("x", nil)
	logger.Debug("x", nil)

	sink := &NoOpSink{}
	assert.NoError(t, sink.Emit(context.Background(), Record{}))
	assert.NoError(t, sink.Shutdown(context.Background()))
}
