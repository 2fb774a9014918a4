package core

import (
	"fmt"
	"strings"
)

// Kind identifies the type of simulated operation.
// The set is closed: requests carrying any other value are rejected
// with ErrUnsupportedKind.
type Kind string

// Supported operation kinds.
const (
	KindService     Kind = "service"
	KindDistributed Kind = "distributed"
	KindTopology    Kind = "topology"
	KindEvent       Kind = "event"
	KindSLOSuccess  Kind = "slo_success"
	KindSLOFail     Kind = "slo_fail"
	KindSLOLatency  Kind = "slo_latency"
	KindTradeBuy    Kind = "trade_buy"
	KindTradeSell   Kind = "trade_sell"
	KindLoad        Kind = "load"
)

// allKinds lists every supported kind in a stable order.
// Used for catalogs, validation, and default load mixes.
var allKinds = []Kind{
	KindService,
	KindDistributed,
	KindTopology,
	KindEvent,
	KindSLOSuccess,
	KindSLOFail,
	KindSLOLatency,
	KindTradeBuy,
	KindTradeSell,
	KindLoad,
}

// Kinds returns all supported operation kinds in a stable order.
// The returned slice is a copy and safe to modify.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// String returns the kind's wire name.
func (k Kind) String() string {
	return string(k)
}

// ParseKind resolves a string to a Kind. Matching is case-insensitive
// and accepts '-' in place of '_' (e.g. "SLO-Latency" and "slo_latency"
// both resolve to KindSLOLatency). Unknown values return an error that
// unwraps to ErrUnsupportedKind.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	k := Kind(normalized)
	if !k.Valid() {
		return "", &OperationError{
			Op:      "core.ParseKind",
			Kind:    Kind(s),
			Message: fmt.Sprintf("unknown operation kind %q", s),
			Err:     ErrUnsupportedKind,
		}
	}
	return k, nil
}

// Outcome is the terminal status of a simulated operation.
// Randomized Failure outcomes are normal data, not errors: a simulation
// that draws Failure still returns without an error value.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)
