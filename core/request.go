package core

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// OperationRequest describes one unit of simulated work. Requests are
// immutable once constructed and carry no state beyond a single call to
// Simulator.Simulate.
type OperationRequest struct {
	// ID uniquely identifies this request. Generated by
	// NewOperationRequest in the form "<kind>-<8 hex chars>".
	ID string

	// Kind selects which simulation script runs.
	Kind Kind

	// Parameters carries caller-supplied values. The dispatcher fills
	// this from query string and JSON body; the load generator leaves
	// it nil. Well-known keys ("threshold.millis", "fanout") steer the
	// simulation; everything else is copied onto the result attributes.
	Parameters map[string]interface{}
}

// NewOperationRequest builds a request with a generated ID.
func NewOperationRequest(kind Kind, params map[string]interface{}) OperationRequest {
	return OperationRequest{
		ID:         fmt.Sprintf("%s-%s", kind, uuid.New().String()[:8]),
		Kind:       kind,
		Parameters: params,
	}
}

// StringParam returns the named parameter as a string.
func (r OperationRequest) StringParam(key string) (string, bool) {
	v, ok := r.Parameters[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// FloatParam returns the named parameter as a float64. JSON bodies
// decode numbers as float64 while query parameters arrive as strings,
// so both representations are accepted.
func (r OperationRequest) FloatParam(key string) (float64, bool) {
	v, ok := r.Parameters[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// IntParam returns the named parameter as an int, accepting the same
// representations as FloatParam.
func (r OperationRequest) IntParam(key string) (int, bool) {
	f, ok := r.FloatParam(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
