package core

import (
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs every request at debug level and slow
// requests at warn. Severity ignores the status code on purpose: a 500
// here is normally a simulated Failure outcome, already logged with
// its operation context by the handler.
func LoggingMiddleware(logger Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			if duration > slowThreshold {
				logger.Warn("Slow HTTP request", fields)
				return
			}
			logger.Debug("HTTP request", fields)
		})
	}
}
