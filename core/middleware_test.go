package core

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logCall struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *recordingLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }

func (l *recordingLogger) snapshot() []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logCall(nil), l.calls...)
}

func TestLoggingMiddlewareDebugLevel(t *testing.T) {
	logger := &recordingLogger{}
	handler := LoggingMiddleware(logger, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/service?user.id=7", nil))

	calls := logger.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "debug", calls[0].level)
	assert.Equal(t, "HTTP request", calls[0].msg)
	assert.Equal(t, http.StatusNoContent, calls[0].fields["status"])
	assert.Equal(t, "/api/service", calls[0].fields["path"])
	assert.Equal(t, "user.id=7", calls[0].fields["query"])
}

func TestLoggingMiddlewareSlowRequests(t *testing.T) {
	logger := &recordingLogger{}
	handler := LoggingMiddleware(logger, time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/load", nil))

	calls := logger.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "warn", calls[0].level)
	assert.Equal(t, "Slow HTTP request", calls[0].msg)
}

func TestLoggingMiddlewareImplicitOK(t *testing.T) {
	logger := &recordingLogger{}
	handler := LoggingMiddleware(logger, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	calls := logger.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, http.StatusOK, calls[0].fields["status"])
}

func TestLoggingMiddlewareNilLogger(t *testing.T) {
	handler := LoggingMiddleware(nil, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.NotPanics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
