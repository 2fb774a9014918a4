package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ProductionLogger is the standard Logger implementation.
//
// Output format follows the environment: JSON lines in Kubernetes (for
// log aggregation) and human-readable text locally, overridable through
// configuration. Error logs are rate limited so a failing dependency
// under load-generator traffic cannot flood the output.
type ProductionLogger struct {
	level   string
	debug   bool
	service string
	format  string
	output  io.Writer
	mu      sync.RWMutex

	errorLimiter *logRateLimiter
}

// logRateLimiter caps how often a log path may fire.
type logRateLimiter struct {
	interval time.Duration
	lastTime time.Time
	mu       sync.Mutex
}

func newLogRateLimiter(interval time.Duration) *logRateLimiter {
	return &logRateLimiter{interval: interval}
}

// Allow returns true if an action is allowed based on rate limiting
func (r *logRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		return true
	}
	return false
}

// NewProductionLogger creates a logger for the given service name.
// Configuration priority:
//  1. Explicit LoggingConfig values (highest)
//  2. Environment variables (OPSIM_LOG_LEVEL, OPSIM_LOG_FORMAT, OPSIM_DEBUG)
//  3. Auto-detection (JSON format in Kubernetes)
//  4. Defaults (info level, text format, stdout)
//
// When cfg.File is set, output goes to a size-rotated log file instead
// of stdout.
func NewProductionLogger(cfg LoggingConfig, service string) *ProductionLogger {
	level := cfg.Level
	if v := os.Getenv("OPSIM_LOG_LEVEL"); v != "" {
		level = v
	}
	if level == "" {
		level = "info"
	}

	debug := os.Getenv("OPSIM_DEBUG") == "true" || strings.EqualFold(level, "debug")

	format := cfg.Format
	if format == "" || format == "auto" {
		format = "text"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
	}
	if v := os.Getenv("OPSIM_LOG_FORMAT"); v != "" {
		format = v
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		output = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	return &ProductionLogger{
		level:        strings.ToUpper(level),
		debug:        debug,
		service:      service,
		format:       format,
		output:       output,
		errorLimiter: newLogRateLimiter(time.Second),
	}
}

// Info logs informational messages
func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

// Warn logs warning messages
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

// Error logs error messages with rate limiting
func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.log("ERROR", msg, fields)
}

// Debug logs debug messages (only when debug mode is enabled)
func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if !l.debug {
		return
	}
	l.log("DEBUG", msg, fields)
}

func (l *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.shouldLog(level) {
		return
	}

	timestamp := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(timestamp, level, msg, fields)
	} else {
		l.logText(timestamp, level, msg, fields)
	}
}

func (l *ProductionLogger) logJSON(timestamp, level, msg string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level,
		"service":   l.service,
		"message":   msg,
	}
	for k, v := range fields {
		if k != "timestamp" && k != "level" && k != "service" && k != "message" {
			entry[k] = v
		}
	}
	if data, err := json.Marshal(entry); err == nil {
		fmt.Fprintln(l.output, string(data))
	}
}

func (l *ProductionLogger) logText(timestamp, level, msg string, fields map[string]interface{}) {
	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		// Common fields first for readability
		for _, key := range []string{"kind", "request_id", "outcome", "error"} {
			if v, ok := fields[key]; ok {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", key, v))
			}
		}
		for k, v := range fields {
			switch k {
			case "kind", "request_id", "outcome", "error":
				continue
			}
			fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
		}
	}

	fmt.Fprintf(l.output, "%s [%s] [%s] %s%s\n",
		timestamp, level, l.service, msg, fieldStr.String())
}

func (l *ProductionLogger) shouldLog(level string) bool {
	levels := map[string]int{
		"DEBUG": 0,
		"INFO":  1,
		"WARN":  2,
		"ERROR": 3,
	}

	currentLevel, ok1 := levels[l.level]
	messageLevel, ok2 := levels[level]
	if !ok1 || !ok2 {
		return true
	}
	return messageLevel >= currentLevel
}

// SetLevel dynamically updates the log level
func (l *ProductionLogger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = strings.ToUpper(level)
	l.debug = l.level == "DEBUG"
}

// SetOutput changes the output writer (useful for testing)
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}
