package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearDetectionEnv pins environment detection to "local" and clears
// the config file variable so tests do not depend on where they run.
func clearDetectionEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("OPSIM_CONFIG_FILE", "")
}

func TestDefaultConfig(t *testing.T) {
	clearDetectionEnv(t)

	cfg := DefaultConfig()

	assert.Equal(t, "opsim", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Address)

	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.HTTP.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.False(t, cfg.HTTP.HoldResponses)

	assert.False(t, cfg.HTTP.CORS.Enabled)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.HTTP.CORS.AllowedMethods)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "development", cfg.Telemetry.Profile)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.True(t, cfg.Telemetry.Insecure)

	assert.False(t, cfg.LoadGen.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.LoadGen.Interval)
	assert.Equal(t, 4, cfg.LoadGen.Workers)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
}

func TestDetectEnvironment(t *testing.T) {
	t.Run("kubernetes", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")

		cfg := DefaultConfig()
		assert.Equal(t, "0.0.0.0", cfg.Address)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "production", cfg.Telemetry.Profile)
	})

	t.Run("local", func(t *testing.T) {
		clearDetectionEnv(t)

		cfg := DefaultConfig()
		assert.Equal(t, "localhost", cfg.Address)
		assert.Equal(t, "auto", cfg.Logging.Format)
	})
}

func TestLoadFromEnv(t *testing.T) {
	clearDetectionEnv(t)
	t.Setenv("OPSIM_SERVICE_NAME", "env-opsim")
	t.Setenv("OPSIM_PORT", "9999")
	t.Setenv("OPSIM_HOLD_RESPONSES", "yes")
	t.Setenv("OPSIM_CORS_ENABLED", "true")
	t.Setenv("OPSIM_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("OPSIM_TELEMETRY_PROTOCOL", "http")
	t.Setenv("OPSIM_LOADGEN_INTERVAL", "1s")
	t.Setenv("OPSIM_LOADGEN_WORKERS", "8")
	t.Setenv("OPSIM_LOG_LEVEL", "debug")
	t.Setenv("OPSIM_RAND_SEED", "12345")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-opsim", cfg.Name)
	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.HTTP.HoldResponses)
	assert.True(t, cfg.HTTP.CORS.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORS.AllowedOrigins)
	assert.Equal(t, "http", cfg.Telemetry.Protocol)
	assert.Equal(t, time.Second, cfg.LoadGen.Interval)
	assert.Equal(t, 8, cfg.LoadGen.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, uint64(12345), cfg.RandSeed)
}

func TestEndpointAutoEnablesTelemetry(t *testing.T) {
	clearDetectionEnv(t)
	t.Setenv("OPSIM_TELEMETRY_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestOptionsOverrideEnv(t *testing.T) {
	clearDetectionEnv(t)
	t.Setenv("OPSIM_PORT", "9999")

	cfg, err := NewConfig(WithPort(7070))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestOptionValidation(t *testing.T) {
	clearDetectionEnv(t)

	_, err := NewConfig(WithPort(0))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	_, err = NewConfig(WithPort(70000))
	require.Error(t, err)

	_, err = NewConfig(WithLoadGen(0, 4))
	require.Error(t, err)

	_, err = NewConfig(WithLoadGen(time.Second, 0))
	require.Error(t, err)

	_, err = NewConfig(WithPolicy(Kind("mystery"), Policy{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPolicy))
}

func TestConfigValidate(t *testing.T) {
	clearDetectionEnv(t)

	mutate := func(fn func(*Config)) *Config {
		cfg := DefaultConfig()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name  string
		cfg   *Config
		valid bool
	}{
		{"defaults are valid", mutate(func(c *Config) {}), true},
		{"bad port", mutate(func(c *Config) { c.Port = -1 }), false},
		{"empty name", mutate(func(c *Config) { c.Name = "" }), false},
		{"bad telemetry protocol", mutate(func(c *Config) { c.Telemetry.Protocol = "carrier-pigeon" }), false},
		{"bad telemetry profile", mutate(func(c *Config) { c.Telemetry.Profile = "qa" }), false},
		{"loadgen zero interval", mutate(func(c *Config) {
			c.LoadGen.Enabled = true
			c.LoadGen.Interval = 0
		}), false},
		{"loadgen jitter out of range", mutate(func(c *Config) {
			c.LoadGen.Enabled = true
			c.LoadGen.Jitter = 1.0
		}), false},
		{"disabled loadgen skips loadgen checks", mutate(func(c *Config) {
			c.LoadGen.Enabled = false
			c.LoadGen.Interval = 0
		}), true},
		{"bad log format", mutate(func(c *Config) { c.Logging.Format = "xml" }), false},
		{"bad policy override", mutate(func(c *Config) {
			two := 2.0
			c.Policies = map[string]PolicyOverride{"service": {FailureProbability: &two}}
		}), false},
		{"unknown policy kind", mutate(func(c *Config) {
			c.Policies = map[string]PolicyOverride{"mystery": {}}
		}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	clearDetectionEnv(t)

	content := `
name: file-opsim
port: 6060
http:
  read_timeout_ms: 5000
  hold_responses: true
loadgen:
  enabled: true
  interval_ms: 100
  workers: 2
  weights:
    service: 10
    trade_buy: 1
logging:
  level: debug
policies:
  trade_buy:
    failure_probability: 0
    latency_max_ms: 300
`
	path := filepath.Join(t.TempDir(), "opsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewConfig(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "file-opsim", cfg.Name)
	assert.Equal(t, 6060, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.True(t, cfg.HTTP.HoldResponses)
	assert.True(t, cfg.LoadGen.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.LoadGen.Interval)
	assert.Equal(t, 2, cfg.LoadGen.Workers)
	assert.Equal(t, map[string]int{"service": 10, "trade_buy": 1}, cfg.LoadGen.Weights)
	assert.Equal(t, "debug", cfg.Logging.Level)

	table, err := cfg.PolicyTable()
	require.NoError(t, err)
	// An explicit zero in the file must stick.
	assert.Equal(t, 0.0, table[KindTradeBuy].FailureProbability)
	assert.Equal(t, 300*time.Millisecond, table[KindTradeBuy].LatencyMax)
	// Cells the file does not mention keep their defaults.
	assert.Equal(t, 80*time.Millisecond, table[KindTradeBuy].LatencyMin)
}

func TestLoadFromFileJSON(t *testing.T) {
	clearDetectionEnv(t)

	content := `{
  "name": "json-opsim",
  "port": 6061,
  "policies": {
    "slo_latency": {"slo_threshold_ms": 2000}
  }
}`
	path := filepath.Join(t.TempDir(), "opsim.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewConfig(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "json-opsim", cfg.Name)
	assert.Equal(t, 6061, cfg.Port)

	table, err := cfg.PolicyTable()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, table[KindSLOLatency].SLOThreshold)
}

func TestLoadFromFileErrors(t *testing.T) {
	clearDetectionEnv(t)
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "opsim.toml")
		require.NoError(t, os.WriteFile(path, []byte("name = 'x'"), 0o600))
		err := DefaultConfig().LoadFromFile(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})

	t.Run("missing file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [not a port"), 0o600))
		err := DefaultConfig().LoadFromFile(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})
}

func TestFilePrecedence(t *testing.T) {
	clearDetectionEnv(t)
	t.Setenv("OPSIM_PORT", "9999")

	path := filepath.Join(t.TempDir(), "opsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6060\n"), 0o600))

	t.Run("file overrides env", func(t *testing.T) {
		cfg, err := NewConfig(WithConfigFile(path))
		require.NoError(t, err)
		assert.Equal(t, 6060, cfg.Port)
	})

	t.Run("later options override file", func(t *testing.T) {
		cfg, err := NewConfig(WithConfigFile(path), WithPort(7070))
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Port)
	})
}

func TestConfigFileFromEnv(t *testing.T) {
	clearDetectionEnv(t)

	path := filepath.Join(t.TempDir(), "opsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: env-file-opsim\nport: 6062\n"), 0o600))
	t.Setenv("OPSIM_CONFIG_FILE", path)

	t.Run("file named by env is loaded", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "env-file-opsim", cfg.Name)
		assert.Equal(t, 6062, cfg.Port)
	})

	t.Run("env vars override the env-named file", func(t *testing.T) {
		t.Setenv("OPSIM_PORT", "9999")
		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Port)
	})

	t.Run("missing file fails fast", func(t *testing.T) {
		t.Setenv("OPSIM_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := NewConfig()
		assert.Error(t, err)
	})
}

func TestWithPolicyOption(t *testing.T) {
	clearDetectionEnv(t)

	cfg, err := NewConfig(WithPolicy(KindService, Policy{
		FailureProbability: 0.5,
		LatencyMin:         10 * time.Millisecond,
		LatencyMax:         20 * time.Millisecond,
	}))
	require.NoError(t, err)

	table, err := cfg.PolicyTable()
	require.NoError(t, err)
	assert.Equal(t, 0.5, table[KindService].FailureProbability)
	assert.Equal(t, 10*time.Millisecond, table[KindService].LatencyMin)
	assert.Equal(t, 20*time.Millisecond, table[KindService].LatencyMax)
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("1"))
	assert.True(t, parseBool("YES"))
	assert.True(t, parseBool(" on "))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool("0"))
	assert.False(t, parseBool(""))

	assert.Equal(t, []string{"a", "b"}, parseStringList("a, b"))
	assert.Equal(t, []string{"a"}, parseStringList("a,,"))
	assert.Empty(t, parseStringList(" , "))
}
