package core

import "time"

// ChildEvent is a named point or sub-operation inside a simulated
// operation. Offset is measured from the operation's start. A zero
// Duration marks a point-in-time event; a positive Duration marks a
// sub-operation the sink renders as a child span covering
// [Offset, Offset+Duration].
type ChildEvent struct {
	Name       string
	Offset     time.Duration
	Duration   time.Duration
	Attributes map[string]interface{}
}

// OperationResult is the product of one simulated operation. Outcome is
// always set and Latency is never negative. Results are consumed by the
// emitting step and then discarded; they hold no references back into
// the simulator.
type OperationResult struct {
	Outcome    Outcome
	Latency    time.Duration
	Attributes map[string]interface{}
	Events     []ChildEvent
}

// LatencyMillis returns the simulated latency in whole milliseconds.
func (r OperationResult) LatencyMillis() int64 {
	return r.Latency.Milliseconds()
}

// Failed reports whether the operation drew a Failure outcome.
func (r OperationResult) Failed() bool {
	return r.Outcome == OutcomeFailure
}

// Origins a Record can be triggered from.
const (
	OriginHTTP    = "http"
	OriginLoadGen = "loadgen"
)

// Record is the telemetry view of one completed operation: the request
// identity paired with its result and a concrete start time. Start is
// backdated by the simulated latency so sinks can emit spans whose
// wall-clock duration equals the drawn latency without ever sleeping.
type Record struct {
	ID         string
	Kind       Kind
	Origin     string // OriginHTTP or OriginLoadGen
	Start      time.Time
	Outcome    Outcome
	Latency    time.Duration
	Attributes map[string]interface{}
	Events     []ChildEvent
}

// End returns the operation's end time (Start plus the simulated latency).
func (r Record) End() time.Time {
	return r.Start.Add(r.Latency)
}

// NewRecord pairs a request with its result for emission. The origin
// tags where the operation was triggered from.
func NewRecord(req OperationRequest, res OperationResult, origin string) Record {
	return Record{
		ID:         req.ID,
		Kind:       req.Kind,
		Origin:     origin,
		Start:      time.Now().Add(-res.Latency),
		Outcome:    res.Outcome,
		Latency:    res.Latency,
		Attributes: res.Attributes,
		Events:     res.Events,
	}
}
