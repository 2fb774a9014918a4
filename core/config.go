package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the simulator service.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. The config file named by OPSIM_CONFIG_FILE
//  3. Environment variables
//  4. Functional options (highest priority)
//
// Config files (JSON or YAML) can also be loaded through the
// WithConfigFile option, in which case file settings override
// environment variables but are themselves overridden by later
// options.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithName("opsim"),
//	    WithPort(8080),
//	    WithPolicy(KindTradeBuy, Policy{FailureProbability: 0.3, LatencyMin: 50 * time.Millisecond, LatencyMax: 200 * time.Millisecond}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Core configuration
	Name    string `json:"name" yaml:"name" env:"OPSIM_SERVICE_NAME"`
	Port    int    `json:"port" yaml:"port" env:"OPSIM_PORT" default:"8080"`
	Address string `json:"address" yaml:"address" env:"OPSIM_ADDRESS"`

	// HTTP server configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Telemetry configuration
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Load generator configuration
	LoadGen LoadGenConfig `json:"loadgen" yaml:"loadgen"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Policies overrides individual policy cells per kind. Keys are
	// kind names; omitted kinds keep their defaults.
	Policies map[string]PolicyOverride `json:"policies" yaml:"policies"`

	// RandSeed seeds the simulator's random source when non-zero.
	// Zero means entropy seeding. Set it to make a demo reproducible.
	RandSeed uint64 `json:"rand_seed" yaml:"rand_seed" env:"OPSIM_RAND_SEED"`
}

// HTTPConfig contains HTTP server configuration including timeouts and
// CORS settings. All timeout values use time.Duration.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"-" yaml:"-" env:"OPSIM_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `json:"-" yaml:"-" env:"OPSIM_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `json:"-" yaml:"-" env:"OPSIM_HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `json:"-" yaml:"-" env:"OPSIM_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	// HoldResponses makes handlers wait out the simulated latency
	// before responding, for wall-clock-realistic demos. The wait is
	// cancellable, so shutdown stays prompt. Off by default: exported
	// spans already carry realistic durations without it.
	HoldResponses bool `json:"hold_responses" yaml:"hold_responses" env:"OPSIM_HOLD_RESPONSES" default:"false"`

	CORS CORSConfig `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings for the
// HTTP dispatcher. Disabled by default; enable and list origins
// explicitly when a browser-based dashboard calls the endpoints.
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"OPSIM_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"OPSIM_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" env:"OPSIM_CORS_METHODS" default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" env:"OPSIM_CORS_HEADERS" default:"Content-Type,Authorization"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" env:"OPSIM_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" env:"OPSIM_CORS_MAX_AGE" default:"86400"`
}

// TelemetryConfig selects where telemetry records go. With no endpoint
// the sink writes to the console (pretty-printed spans and metrics on
// stdout); with an endpoint it exports OTLP over the chosen protocol.
type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled" env:"OPSIM_TELEMETRY_ENABLED" default:"true"`
	Profile      string  `json:"profile" yaml:"profile" env:"OPSIM_TELEMETRY_PROFILE,APP_ENV"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint" env:"OPSIM_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol     string  `json:"protocol" yaml:"protocol" env:"OPSIM_TELEMETRY_PROTOCOL" default:"grpc"`
	Insecure     bool    `json:"insecure" yaml:"insecure" env:"OPSIM_TELEMETRY_INSECURE" default:"true"`
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" env:"OPSIM_TELEMETRY_SAMPLING_RATE"`
	ServiceName  string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// LoadGenConfig controls the in-process load generator.
type LoadGenConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"OPSIM_LOADGEN_ENABLED" default:"false"`

	// Interval is the base spacing between operations.
	Interval time.Duration `json:"-" yaml:"-" env:"OPSIM_LOADGEN_INTERVAL" default:"250ms"`

	// Jitter randomizes each interval by up to this fraction in either
	// direction. 0 disables jitter; must stay below 1.
	Jitter float64 `json:"jitter" yaml:"jitter" env:"OPSIM_LOADGEN_JITTER" default:"0.2"`

	// Workers caps concurrently running operations. Ticks that find
	// all workers busy are skipped, not queued.
	Workers int `json:"workers" yaml:"workers" env:"OPSIM_LOADGEN_WORKERS" default:"4"`

	// MaxOperations stops the generator after this many operations.
	// Zero means run until canceled.
	MaxOperations int64 `json:"max_operations" yaml:"max_operations" env:"OPSIM_LOADGEN_MAX_OPERATIONS"`

	// Weights sets the relative frequency of each kind in the traffic
	// mix. Keys are kind names; kinds with weight 0 are excluded. Nil
	// means the built-in default mix.
	Weights map[string]int `json:"weights" yaml:"weights"`
}

// LoggingConfig contains logging configuration. Format "auto" (the
// default) picks JSON in Kubernetes and text elsewhere. Setting File
// sends output to a size-rotated log file instead of stdout.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"OPSIM_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"OPSIM_LOG_FORMAT" default:"auto"`
	File       string `json:"file" yaml:"file" env:"OPSIM_LOG_FILE"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" default:"100"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" default:"3"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" default:"28"`
}

// PolicyOverride adjusts individual cells of one kind's policy.
// Pointer fields distinguish "not set" from an explicit zero, so a
// config file can legitimately set a failure probability to 0.
// Durations are expressed in milliseconds for config-file friendliness.
type PolicyOverride struct {
	FailureProbability *float64 `json:"failure_probability" yaml:"failure_probability"`
	LatencyMinMillis   *int64   `json:"latency_min_ms" yaml:"latency_min_ms"`
	LatencyMaxMillis   *int64   `json:"latency_max_ms" yaml:"latency_max_ms"`
	SLOThresholdMillis *int64   `json:"slo_threshold_ms" yaml:"slo_threshold_ms"`
	Fanout             *int     `json:"fanout" yaml:"fanout"`
}

// Option is a functional option for configuring the service.
// Options are applied in order and may return an error.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults,
// adjusted for the detected environment (Kubernetes vs local).
func DefaultConfig() *Config {
	cfg := &Config{
		Name: "opsim",
		Port: 8080,
		HTTP: HTTPConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				Enabled:          false,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
				MaxAge:           86400,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Profile:  "development",
			Protocol: "grpc",
			Insecure: true,
		},
		LoadGen: LoadGenConfig{
			Enabled:  false,
			Interval: 250 * time.Millisecond,
			Jitter:   0.2,
			Workers:  4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}

	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment adjusts defaults based on the detected execution
// environment. Called automatically by DefaultConfig.
//
// Detection criteria:
//   - Kubernetes: KUBERNETES_SERVICE_HOST environment variable is set
//   - Local: no Kubernetes environment variables detected
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.Address = "0.0.0.0"
		c.Logging.Format = "json"
		if c.Telemetry.Profile == "" || c.Telemetry.Profile == "development" {
			c.Telemetry.Profile = "production"
		}
	} else {
		c.Address = "localhost"
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are
// overridden by config files and functional options.
//
// Variable naming convention:
//   - Service-specific: OPSIM_<SETTING>
//   - Standard variables: OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME, APP_ENV
func (c *Config) LoadFromEnv() error {
	// Core settings
	if v := os.Getenv("OPSIM_SERVICE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("OPSIM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("OPSIM_ADDRESS"); v != "" {
		c.Address = v
	}

	// HTTP settings
	if v := os.Getenv("OPSIM_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("OPSIM_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("OPSIM_HTTP_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.IdleTimeout = d
		}
	}
	if v := os.Getenv("OPSIM_HTTP_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("OPSIM_HOLD_RESPONSES"); v != "" {
		c.HTTP.HoldResponses = parseBool(v)
	}

	// CORS settings
	if v := os.Getenv("OPSIM_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("OPSIM_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}
	if v := os.Getenv("OPSIM_CORS_METHODS"); v != "" {
		c.HTTP.CORS.AllowedMethods = parseStringList(v)
	}
	if v := os.Getenv("OPSIM_CORS_HEADERS"); v != "" {
		c.HTTP.CORS.AllowedHeaders = parseStringList(v)
	}
	if v := os.Getenv("OPSIM_CORS_CREDENTIALS"); v != "" {
		c.HTTP.CORS.AllowCredentials = parseBool(v)
	}

	// Telemetry settings
	if v := os.Getenv("OPSIM_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("OPSIM_TELEMETRY_PROFILE"); v != "" {
		c.Telemetry.Profile = v
	} else if v := os.Getenv("APP_ENV"); v != "" {
		c.Telemetry.Profile = v
	}
	if v := os.Getenv("OPSIM_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if endpoint is provided
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if OTEL endpoint is present
	}
	if v := os.Getenv("OPSIM_TELEMETRY_PROTOCOL"); v != "" {
		c.Telemetry.Protocol = v
	}
	if v := os.Getenv("OPSIM_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}
	if v := os.Getenv("OPSIM_TELEMETRY_SAMPLING_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Telemetry.SamplingRate = rate
		}
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}

	// Load generator settings
	if v := os.Getenv("OPSIM_LOADGEN_ENABLED"); v != "" {
		c.LoadGen.Enabled = parseBool(v)
	}
	if v := os.Getenv("OPSIM_LOADGEN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LoadGen.Interval = d
		}
	}
	if v := os.Getenv("OPSIM_LOADGEN_JITTER"); v != "" {
		if j, err := strconv.ParseFloat(v, 64); err == nil {
			c.LoadGen.Jitter = j
		}
	}
	if v := os.Getenv("OPSIM_LOADGEN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LoadGen.Workers = n
		}
	}
	if v := os.Getenv("OPSIM_LOADGEN_MAX_OPERATIONS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.LoadGen.MaxOperations = n
		}
	}

	// Logging settings
	if v := os.Getenv("OPSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OPSIM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("OPSIM_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	// Randomness
	if v := os.Getenv("OPSIM_RAND_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.RandSeed = seed
		}
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. The
// decoder is selected by extension (.json, .yaml, .yml). File settings
// override environment variables but are overridden by functional
// options applied after WithConfigFile.
//
// Example YAML:
//
//	name: opsim
//	port: 8080
//	loadgen:
//	  enabled: true
//	  workers: 8
//	policies:
//	  trade_buy:
//	    failure_probability: 0.25
//	    latency_max_ms: 300
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // #nosec G304 -- path is cleaned and validated above
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	// Timeouts and intervals are excluded from file decoding (they are
	// duration-typed); files carry millisecond fields instead.
	var durs fileDurations
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &durs); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &durs); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}
	durs.apply(c)

	return nil
}

// fileDurations carries the duration-valued file settings as explicit
// millisecond fields, since neither JSON nor YAML decodes "30s" into a
// time.Duration.
type fileDurations struct {
	HTTP struct {
		ReadTimeoutMillis     int64 `json:"read_timeout_ms" yaml:"read_timeout_ms"`
		WriteTimeoutMillis    int64 `json:"write_timeout_ms" yaml:"write_timeout_ms"`
		IdleTimeoutMillis     int64 `json:"idle_timeout_ms" yaml:"idle_timeout_ms"`
		ShutdownTimeoutMillis int64 `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms"`
	} `json:"http" yaml:"http"`
	LoadGen struct {
		IntervalMillis int64 `json:"interval_ms" yaml:"interval_ms"`
	} `json:"loadgen" yaml:"loadgen"`
}

func (d fileDurations) apply(c *Config) {
	if d.HTTP.ReadTimeoutMillis > 0 {
		c.HTTP.ReadTimeout = time.Duration(d.HTTP.ReadTimeoutMillis) * time.Millisecond
	}
	if d.HTTP.WriteTimeoutMillis > 0 {
		c.HTTP.WriteTimeout = time.Duration(d.HTTP.WriteTimeoutMillis) * time.Millisecond
	}
	if d.HTTP.IdleTimeoutMillis > 0 {
		c.HTTP.IdleTimeout = time.Duration(d.HTTP.IdleTimeoutMillis) * time.Millisecond
	}
	if d.HTTP.ShutdownTimeoutMillis > 0 {
		c.HTTP.ShutdownTimeout = time.Duration(d.HTTP.ShutdownTimeoutMillis) * time.Millisecond
	}
	if d.LoadGen.IntervalMillis > 0 {
		c.LoadGen.Interval = time.Duration(d.LoadGen.IntervalMillis) * time.Millisecond
	}
}

// PolicyTable materializes the effective policy table: the defaults
// with this configuration's per-kind overrides applied. The result is
// validated before it is returned.
func (c *Config) PolicyTable() (PolicyTable, error) {
	table := DefaultPolicies()
	for name, override := range c.Policies {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		p := table[kind]
		if override.FailureProbability != nil {
			p.FailureProbability = *override.FailureProbability
		}
		if override.LatencyMinMillis != nil {
			p.LatencyMin = time.Duration(*override.LatencyMinMillis) * time.Millisecond
		}
		if override.LatencyMaxMillis != nil {
			p.LatencyMax = time.Duration(*override.LatencyMaxMillis) * time.Millisecond
		}
		if override.SLOThresholdMillis != nil {
			p.SLOThreshold = time.Duration(*override.SLOThresholdMillis) * time.Millisecond
		}
		if override.Fanout != nil {
			p.Fanout = *override.Fanout
		}
		table[kind] = p
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks if the configuration is valid and returns an error
// if not. Called automatically by NewConfig.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &OperationError{
			Op:      "Config.Validate",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Name == "" {
		return &OperationError{
			Op:      "Config.Validate",
			Message: "service name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		return &OperationError{
			Op:      "Config.Validate",
			Message: fmt.Sprintf("invalid telemetry protocol %q (want grpc or http)", c.Telemetry.Protocol),
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Telemetry.Profile {
	case "", "development", "staging", "production":
	default:
		return &OperationError{
			Op:      "Config.Validate",
			Message: fmt.Sprintf("unknown telemetry profile %q", c.Telemetry.Profile),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.LoadGen.Enabled {
		if c.LoadGen.Interval <= 0 {
			return &OperationError{
				Op:      "Config.Validate",
				Message: "load generator interval must be positive",
				Err:     ErrInvalidConfiguration,
			}
		}
		if c.LoadGen.Workers < 1 {
			return &OperationError{
				Op:      "Config.Validate",
				Message: fmt.Sprintf("load generator needs at least one worker, got %d", c.LoadGen.Workers),
				Err:     ErrInvalidConfiguration,
			}
		}
		if c.LoadGen.Jitter < 0 || c.LoadGen.Jitter >= 1 {
			return &OperationError{
				Op:      "Config.Validate",
				Message: fmt.Sprintf("load generator jitter %v outside [0, 1)", c.LoadGen.Jitter),
				Err:     ErrInvalidConfiguration,
			}
		}
		if c.LoadGen.MaxOperations < 0 {
			return &OperationError{
				Op:      "Config.Validate",
				Message: "load generator max operations cannot be negative",
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	switch c.Logging.Format {
	case "", "auto", "json", "text":
	default:
		return &OperationError{
			Op:      "Config.Validate",
			Message: fmt.Sprintf("unknown log format %q", c.Logging.Format),
			Err:     ErrInvalidConfiguration,
		}
	}

	// Policy overrides must materialize into a valid table.
	if _, err := c.PolicyTable(); err != nil {
		return err
	}

	return nil
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of
// strings, trimming whitespace and dropping empty elements.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the service name used in logs, health responses, and
// the telemetry resource.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port. Must be between 1 and 65535.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &OperationError{
				Op:      "WithPort",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address for the HTTP server.
// Use "0.0.0.0" in containers; defaults follow environment detection.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins. The credentials
// parameter controls whether cookies and auth headers are allowed.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithTelemetry enables telemetry with the specified OTLP endpoint.
// An empty endpoint selects the console exporters.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = c.Name
		}
		return nil
	}
}

// WithTelemetryProfile selects a telemetry profile
// ("development", "staging", "production").
func WithTelemetryProfile(profile string) Option {
	return func(c *Config) error {
		c.Telemetry.Profile = profile
		return nil
	}
}

// WithHoldResponses makes HTTP handlers wait out the simulated latency
// before responding.
func WithHoldResponses(enabled bool) Option {
	return func(c *Config) error {
		c.HTTP.HoldResponses = enabled
		return nil
	}
}

// WithLoadGen enables the background load generator with the given
// base interval and worker cap.
func WithLoadGen(interval time.Duration, workers int) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return &OperationError{
				Op:      "WithLoadGen",
				Message: "interval must be positive",
				Err:     ErrInvalidConfiguration,
			}
		}
		if workers < 1 {
			return &OperationError{
				Op:      "WithLoadGen",
				Message: fmt.Sprintf("need at least one worker, got %d", workers),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.LoadGen.Enabled = true
		c.LoadGen.Interval = interval
		c.LoadGen.Workers = workers
		return nil
	}
}

// WithPolicy overrides the full policy for one kind. Use a
// PolicyOverride in the config file to adjust individual cells.
func WithPolicy(kind Kind, p Policy) Option {
	return func(c *Config) error {
		if !kind.Valid() {
			return fmt.Errorf("policy for unknown kind %q: %w", kind, ErrInvalidPolicy)
		}
		if c.Policies == nil {
			c.Policies = make(map[string]PolicyOverride)
		}
		prob := p.FailureProbability
		minMS := p.LatencyMin.Milliseconds()
		maxMS := p.LatencyMax.Milliseconds()
		thresholdMS := p.SLOThreshold.Milliseconds()
		fanout := p.Fanout
		c.Policies[string(kind)] = PolicyOverride{
			FailureProbability: &prob,
			LatencyMinMillis:   &minMS,
			LatencyMaxMillis:   &maxMS,
			SLOThresholdMillis: &thresholdMS,
			Fanout:             &fanout,
		}
		return nil
	}
}

// WithRandSeed seeds the simulator for reproducible runs.
func WithRandSeed(seed uint64) Option {
	return func(c *Config) error {
		c.RandSeed = seed
		return nil
	}
}

// WithLogLevel sets the minimum logging level
// ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("auto", "json", "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithLogFile sends log output to a size-rotated file.
func WithLogFile(path string) Option {
	return func(c *Config) error {
		c.Logging.File = path
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
// File settings override environment variables; options applied after
// this one override file settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. The file named by OPSIM_CONFIG_FILE, when set
//  3. Environment variables via LoadFromEnv()
//  4. Functional options (highest priority)
//  5. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("OPSIM_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
