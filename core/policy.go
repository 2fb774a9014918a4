package core

import (
	"fmt"
	"time"
)

// Policy controls the synthetic behavior of one operation kind.
// Every field is tunable demo behavior, not a contract: deployments
// override individual cells through configuration.
type Policy struct {
	// FailureProbability is the chance in [0, 1] that an operation of
	// this kind draws a Failure outcome.
	FailureProbability float64

	// LatencyMin and LatencyMax bound the uniform latency draw.
	// Results always land inside [LatencyMin, LatencyMax].
	LatencyMin time.Duration
	LatencyMax time.Duration

	// SLOThreshold is the latency threshold checked by SLOLatency
	// operations. Ignored by other kinds.
	SLOThreshold time.Duration

	// Fanout is the burst width of Load operations. Ignored by other
	// kinds.
	Fanout int
}

// PolicyTable maps each operation kind to its policy. A kind missing
// from the table is unsupported: Simulate rejects it.
type PolicyTable map[Kind]Policy

// DefaultPolicies returns the built-in policy table.
//
// Only SLOFail and the trade kinds fail by default; everything else
// always succeeds. SLOLatency draws from a deliberately wide range so
// threshold breaches occur on both sides of the default 1s threshold.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		KindService:     {LatencyMin: 100 * time.Millisecond, LatencyMax: 500 * time.Millisecond},
		KindDistributed: {LatencyMin: 150 * time.Millisecond, LatencyMax: 800 * time.Millisecond},
		KindTopology:    {LatencyMin: 200 * time.Millisecond, LatencyMax: 1200 * time.Millisecond},
		KindEvent:       {LatencyMin: 50 * time.Millisecond, LatencyMax: 200 * time.Millisecond},
		KindSLOSuccess:  {LatencyMin: 50 * time.Millisecond, LatencyMax: 150 * time.Millisecond},
		KindSLOFail:     {FailureProbability: 0.95, LatencyMin: 50 * time.Millisecond, LatencyMax: 150 * time.Millisecond},
		KindSLOLatency:  {LatencyMin: 100 * time.Millisecond, LatencyMax: 2000 * time.Millisecond, SLOThreshold: time.Second},
		KindTradeBuy:    {FailureProbability: 0.10, LatencyMin: 80 * time.Millisecond, LatencyMax: 400 * time.Millisecond},
		KindTradeSell:   {FailureProbability: 0.10, LatencyMin: 80 * time.Millisecond, LatencyMax: 400 * time.Millisecond},
		KindLoad:        {LatencyMin: 20 * time.Millisecond, LatencyMax: 100 * time.Millisecond, Fanout: 5},
	}
}

// Validate checks every entry in the table. It returns an error that
// unwraps to ErrInvalidPolicy when a cell is unusable.
func (t PolicyTable) Validate() error {
	for kind, p := range t {
		if !kind.Valid() {
			return fmt.Errorf("policy for unknown kind %q: %w", kind, ErrInvalidPolicy)
		}
		if p.FailureProbability < 0 || p.FailureProbability > 1 {
			return fmt.Errorf("policy for %s: failure probability %v outside [0, 1]: %w",
				kind, p.FailureProbability, ErrInvalidPolicy)
		}
		if p.LatencyMin < 0 {
			return fmt.Errorf("policy for %s: negative minimum latency %v: %w",
				kind, p.LatencyMin, ErrInvalidPolicy)
		}
		if p.LatencyMax < p.LatencyMin {
			return fmt.Errorf("policy for %s: latency range inverted (%v > %v): %w",
				kind, p.LatencyMin, p.LatencyMax, ErrInvalidPolicy)
		}
		if p.SLOThreshold < 0 {
			return fmt.Errorf("policy for %s: negative SLO threshold %v: %w",
				kind, p.SLOThreshold, ErrInvalidPolicy)
		}
		if p.Fanout < 0 {
			return fmt.Errorf("policy for %s: negative fanout %d: %w",
				kind, p.Fanout, ErrInvalidPolicy)
		}
	}
	return nil
}

// Clone returns an independent copy of the table.
func (t PolicyTable) Clone() PolicyTable {
	out := make(PolicyTable, len(t))
	for k, p := range t {
		out[k] = p
	}
	return out
}
