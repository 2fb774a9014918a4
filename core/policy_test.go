package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPoliciesCoverEveryKind(t *testing.T) {
	table := DefaultPolicies()

	require.NoError(t, table.Validate())
	for _, kind := range Kinds() {
		p, ok := table[kind]
		assert.True(t, ok, "no policy for %s", kind)
		assert.GreaterOrEqual(t, p.FailureProbability, 0.0)
		assert.LessOrEqual(t, p.FailureProbability, 1.0)
		assert.Greater(t, p.LatencyMax, time.Duration(0))
	}

	// The headline defaults demos depend on.
	assert.Equal(t, 0.95, table[KindSLOFail].FailureProbability)
	assert.Equal(t, 0.10, table[KindTradeBuy].FailureProbability)
	assert.Equal(t, time.Second, table[KindSLOLatency].SLOThreshold)
	assert.Equal(t, 5, table[KindLoad].Fanout)
}

func TestPolicyTableValidate(t *testing.T) {
	valid := Policy{FailureProbability: 0.1, LatencyMin: 10 * time.Millisecond, LatencyMax: 20 * time.Millisecond}

	tests := []struct {
		name  string
		kind  Kind
		p     Policy
		valid bool
	}{
		{"valid policy", KindService, valid, true},
		{"zero-width latency range", KindService, Policy{LatencyMin: 5 * time.Millisecond, LatencyMax: 5 * time.Millisecond}, true},
		{"unknown kind", Kind("mystery"), valid, false},
		{"probability below zero", KindService, Policy{FailureProbability: -0.1, LatencyMax: time.Millisecond}, false},
		{"probability above one", KindService, Policy{FailureProbability: 1.1, LatencyMax: time.Millisecond}, false},
		{"negative latency min", KindService, Policy{LatencyMin: -time.Millisecond, LatencyMax: time.Millisecond}, false},
		{"inverted latency range", KindService, Policy{LatencyMin: 20 * time.Millisecond, LatencyMax: 10 * time.Millisecond}, false},
		{"negative threshold", KindSLOLatency, Policy{LatencyMax: time.Millisecond, SLOThreshold: -time.Second}, false},
		{"negative fanout", KindLoad, Policy{LatencyMax: time.Millisecond, Fanout: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := DefaultPolicies()
			table[tt.kind] = tt.p
			err := table.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPolicy), "want ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestPolicyTableClone(t *testing.T) {
	original := DefaultPolicies()
	clone := original.Clone()

	p := clone[KindService]
	p.FailureProbability = 0.99
	clone[KindService] = p

	assert.NotEqual(t, 0.99, original[KindService].FailureProbability)
}
