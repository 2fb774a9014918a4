package telemetry

import "github.com/opsimlab/opsim/core"

// Config configures the telemetry pipeline: where spans and metrics
// go, over which transport, and how aggressively traces are sampled.
type Config struct {
	// Basic settings
	Enabled     bool
	ServiceName string
	Endpoint    string // OTLP collector endpoint; empty selects console exporters
	Protocol    string // "grpc" or "http"
	Insecure    bool

	// Sampling configuration
	SamplingRate float64

	// Console exporter settings
	PrettyPrint bool
}

// Profile represents a pre-configured telemetry profile
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileStaging     Profile = "staging"
	ProfileProduction  Profile = "production"
)

// Profiles contains pre-configured telemetry profiles. Development
// writes pretty-printed spans and metrics to stdout so a bare
// `go run ./cmd/opsim` shows telemetry immediately; staging and
// production ship OTLP to a collector and sample down.
var Profiles = map[Profile]Config{
	ProfileDevelopment: {
		Enabled:      true,
		Protocol:     "grpc",
		Insecure:     true,
		SamplingRate: 1.0,
		PrettyPrint:  true,
	},
	ProfileStaging: {
		Enabled:      true,
		Endpoint:     "otel-collector.staging:4317",
		Protocol:     "grpc",
		Insecure:     true,
		SamplingRate: 0.5,
	},
	ProfileProduction: {
		Enabled:      true,
		Endpoint:     "otel-collector.prod:4317", // Override with env var
		Protocol:     "grpc",
		Insecure:     true,
		SamplingRate: 0.1,
	},
}

// UseProfile returns a configuration based on a profile name
func UseProfile(profile Profile) Config {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	// Default to development profile
	return Profiles[ProfileDevelopment]
}

// FromService builds a pipeline Config from service-level telemetry
// settings: start from the named profile, then apply the explicit
// settings on top. The service's Enabled flag always wins, so a
// disabled service stays disabled regardless of profile.
func FromService(cfg core.TelemetryConfig) Config {
	base := UseProfile(Profile(cfg.Profile))
	base.Enabled = cfg.Enabled
	return base.WithOverrides(Config{
		ServiceName:  cfg.ServiceName,
		Endpoint:     cfg.Endpoint,
		Protocol:     cfg.Protocol,
		Insecure:     cfg.Insecure,
		SamplingRate: cfg.SamplingRate,
	})
}

// WithOverrides applies overrides to a config
func (c Config) WithOverrides(overrides Config) Config {
	// Override non-zero values
	if overrides.Enabled {
		c.Enabled = overrides.Enabled
	}
	if overrides.ServiceName != "" {
		c.ServiceName = overrides.ServiceName
	}
	if overrides.Endpoint != "" {
		c.Endpoint = overrides.Endpoint
	}
	if overrides.Protocol != "" {
		c.Protocol = overrides.Protocol
	}
	if overrides.Insecure {
		c.Insecure = overrides.Insecure
	}
	if overrides.SamplingRate > 0 {
		c.SamplingRate = overrides.SamplingRate
	}
	if overrides.PrettyPrint {
		c.PrettyPrint = overrides.PrettyPrint
	}

	return c
}
