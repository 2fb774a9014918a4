package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsimlab/opsim/core"
)

func TestUseProfile(t *testing.T) {
	dev := UseProfile(ProfileDevelopment)
	assert.True(t, dev.Enabled)
	assert.Empty(t, dev.Endpoint, "development should use console exporters")
	assert.True(t, dev.PrettyPrint)
	assert.Equal(t, 1.0, dev.SamplingRate)

	staging := UseProfile(ProfileStaging)
	assert.Equal(t, "otel-collector.staging:4317", staging.Endpoint)
	assert.Equal(t, 0.5, staging.SamplingRate)

	prod := UseProfile(ProfileProduction)
	assert.Equal(t, "otel-collector.prod:4317", prod.Endpoint)
	assert.Equal(t, 0.1, prod.SamplingRate)

	// Unknown profiles fall back to development.
	assert.Equal(t, dev, UseProfile("qa"))
}

func TestWithOverrides(t *testing.T) {
	base := UseProfile(ProfileProduction)

	merged := base.WithOverrides(Config{
		Endpoint:     "collector.internal:4317",
		SamplingRate: 0.25,
	})
	assert.Equal(t, "collector.internal:4317", merged.Endpoint)
	assert.Equal(t, 0.25, merged.SamplingRate)
	assert.Equal(t, "grpc", merged.Protocol)

	// Zero values leave the base untouched.
	assert.Equal(t, base, base.WithOverrides(Config{}))
}

func TestFromService(t *testing.T) {
	tc := FromService(core.TelemetryConfig{
		Enabled:     true,
		Profile:     "staging",
		Endpoint:    "collector.custom:4317",
		ServiceName: "opsim-it",
	})
	assert.True(t, tc.Enabled)
	assert.Equal(t, "collector.custom:4317", tc.Endpoint)
	assert.Equal(t, "opsim-it", tc.ServiceName)
	assert.Equal(t, 0.5, tc.SamplingRate)

	disabled := FromService(core.TelemetryConfig{Enabled: false, Profile: "development"})
	assert.False(t, disabled.Enabled, "service-level disable must win over the profile")
}
