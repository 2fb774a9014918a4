// Package core implements the observable-operation simulator: synthetic
// units of work (service calls, database transactions, SLO probes, trades)
// with policy-driven latency and outcomes, producing structured telemetry
// records for a pluggable sink.
package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Attribute pools for synthetic results. Values are drawn uniformly.
var (
	userActions = []string{"view_profile", "search", "checkout", "update_settings"}

	dbStatements = []string{
		"SELECT id, status FROM orders WHERE user_id = $1",
		"SELECT symbol, qty FROM positions WHERE account_id = $1",
		"UPDATE accounts SET balance = balance - $1 WHERE id = $2",
		"INSERT INTO audit_log (actor, action) VALUES ($1, $2)",
	}

	tradeSymbols = []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOG"}

	tradeFailureReasons = []string{"insufficient_funds", "risk_limit_exceeded", "order_rejected"}

	logWalk = []struct {
		name     string
		severity string
		message  string
	}{
		{"log.debug", "debug", "connection pool stats refreshed"},
		{"log.info", "info", "request accepted"},
		{"log.warning", "warning", "retry budget running low"},
		{"log.error", "error", "downstream dependency timed out"},
	}

	topologyHops = []struct {
		name string
		peer string
	}{
		{"hop.gateway", "edge-gateway"},
		{"hop.service", "order-service"},
		{"hop.backend", "ledger-backend"},
	}
)

// Simulator produces synthetic operation results according to a policy
// table. It holds no per-request state: every call is independent, and
// a single instance is safe for unlimited concurrent callers. The only
// shared state is the random source, guarded by a mutex.
//
// Simulators never sleep. Latency is a drawn value on the result;
// wall-clock realism is the sink's job (it backdates span start times).
type Simulator struct {
	policies PolicyTable

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithPolicies replaces the default policy table. The table is cloned,
// so later changes to the argument do not affect the simulator.
func WithPolicies(table PolicyTable) SimulatorOption {
	return func(s *Simulator) {
		s.policies = table.Clone()
	}
}

// WithSeed seeds the simulator's random source, making every draw
// reproducible. Tests use this for determinism; production leaves it
// unset and gets an entropy-seeded source.
func WithSeed(seed uint64) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewPCG(seed, 0))
	}
}

// NewSimulator creates a simulator with the default policy table and an
// entropy-seeded random source. Options may replace either. Returns an
// error if the resulting policy table fails validation.
func NewSimulator(opts ...SimulatorOption) (*Simulator, error) {
	s := &Simulator{
		policies: DefaultPolicies(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policies.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policies returns a copy of the simulator's policy table.
func (s *Simulator) Policies() PolicyTable {
	return s.policies.Clone()
}

// Simulate runs one synthetic operation. For every supported kind it
// returns a result and a nil error: randomized Failure outcomes are
// data on the result, not errors. The only error condition is a request
// whose kind is missing from the policy table, which yields an error
// unwrapping to ErrUnsupportedKind and no result.
//
// The result's latency always lands inside the kind's configured range,
// its outcome is always set, and its child events are ordered by offset
// with every event contained within the operation's duration.
func (s *Simulator) Simulate(req OperationRequest) (OperationResult, error) {
	policy, ok := s.policies[req.Kind]
	if !ok {
		return OperationResult{}, NewUnsupportedKindError("simulator.Simulate", req.Kind)
	}

	res := OperationResult{
		Outcome: s.drawOutcome(policy),
		Latency: s.drawLatency(policy),
		Attributes: map[string]interface{}{
			"operation.kind": string(req.Kind),
			"request.id":     req.ID,
		},
	}
	if res.Failed() {
		res.Attributes["error"] = true
		res.Attributes["failure.reason"] = s.failureReason(req.Kind)
	}

	s.script(req, policy, &res)

	// Caller-supplied parameters win over scripted attributes.
	for k, v := range req.Parameters {
		res.Attributes[k] = v
	}

	return res, nil
}

// drawLatency draws uniformly from [LatencyMin, LatencyMax].
func (s *Simulator) drawLatency(p Policy) time.Duration {
	span := p.LatencyMax - p.LatencyMin
	if span <= 0 {
		return p.LatencyMin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.LatencyMin + time.Duration(s.rng.Int64N(int64(span)+1))
}

// drawOutcome draws Failure with the policy's probability.
func (s *Simulator) drawOutcome(p Policy) Outcome {
	switch {
	case p.FailureProbability <= 0:
		return OutcomeSuccess
	case p.FailureProbability >= 1:
		return OutcomeFailure
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < p.FailureProbability {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (s *Simulator) failureReason(kind Kind) string {
	switch kind {
	case KindTradeBuy, KindTradeSell:
		return s.pick(tradeFailureReasons)
	case KindSLOFail:
		return "synthetic_slo_violation"
	default:
		return "synthetic_failure"
	}
}

func (s *Simulator) randIntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *Simulator) pick(options []string) string {
	return options[s.randIntN(len(options))]
}

func (s *Simulator) randPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := 10 + s.rng.Float64()*490
	return math.Round(price*100) / 100
}

// script fills in the per-kind attributes and child events. Offsets are
// proportions of the drawn latency so traces look right at any scale.
func (s *Simulator) script(req OperationRequest, p Policy, res *OperationResult) {
	switch req.Kind {
	case KindService:
		s.scriptService(res)
	case KindDistributed:
		s.scriptDistributed(res)
	case KindTopology:
		s.scriptTopology(res)
	case KindEvent:
		s.scriptEvent(res)
	case KindSLOSuccess, KindSLOFail:
		s.scriptSLO(res)
	case KindSLOLatency:
		s.scriptSLOLatency(req, p, res)
	case KindTradeBuy, KindTradeSell:
		s.scriptTrade(req.Kind, res)
	case KindLoad:
		s.scriptLoad(req, p, res)
	}
}

func (s *Simulator) scriptService(res *OperationResult) {
	res.Attributes["user.id"] = userID(s.randIntN(10000))
	res.Attributes["user.action"] = s.pick(userActions)
	res.Events = []ChildEvent{
		{Name: "request.received", Offset: 0},
		{Name: "response.sent", Offset: res.Latency},
	}
}

func (s *Simulator) scriptDistributed(res *OperationResult) {
	connect := res.Latency / 4
	query := res.Latency * 11 / 20
	res.Attributes["db.system"] = "postgresql"
	res.Events = []ChildEvent{
		{
			Name:       "db.connect",
			Offset:     0,
			Duration:   connect,
			Attributes: map[string]interface{}{"db.pool": "primary"},
		},
		{
			Name:     "db.query",
			Offset:   connect,
			Duration: query,
			Attributes: map[string]interface{}{
				"db.system":        "postgresql",
				"db.statement":     s.pick(dbStatements),
				"db.rows_affected": 1 + s.randIntN(100),
			},
		},
	}
}

func (s *Simulator) scriptTopology(res *OperationResult) {
	hop := res.Latency / time.Duration(len(topologyHops))
	for i, h := range topologyHops {
		res.Events = append(res.Events, ChildEvent{
			Name:       h.name,
			Offset:     time.Duration(i) * hop,
			Duration:   hop,
			Attributes: map[string]interface{}{"peer.service": h.peer},
		})
	}
	res.Attributes["topology.hops"] = len(topologyHops)
}

func (s *Simulator) scriptEvent(res *OperationResult) {
	step := res.Latency / time.Duration(len(logWalk)+1)
	for i, entry := range logWalk {
		res.Events = append(res.Events, ChildEvent{
			Name:   entry.name,
			Offset: time.Duration(i+1) * step,
			Attributes: map[string]interface{}{
				"log.severity": entry.severity,
				"message":      entry.message,
			},
		})
	}
}

func (s *Simulator) scriptSLO(res *OperationResult) {
	res.Attributes["slo.name"] = "availability"
	res.Events = append(res.Events, ChildEvent{
		Name:       "slo.evaluated",
		Offset:     res.Latency / 2,
		Attributes: map[string]interface{}{"slo.name": "availability"},
	})
}

func (s *Simulator) scriptSLOLatency(req OperationRequest, p Policy, res *OperationResult) {
	threshold := p.SLOThreshold
	if ms, ok := req.FloatParam("threshold.millis"); ok && ms > 0 {
		threshold = time.Duration(ms * float64(time.Millisecond))
	}
	breached := res.Latency > threshold
	res.Attributes["slo.name"] = "latency"
	res.Attributes["slo.breached"] = breached
	res.Events = append(res.Events, ChildEvent{
		Name:   "threshold.check",
		Offset: res.Latency,
		Attributes: map[string]interface{}{
			"breached":         breached,
			"threshold.millis": threshold.Milliseconds(),
		},
	})
}

func (s *Simulator) scriptTrade(kind Kind, res *OperationResult) {
	side := "buy"
	if kind == KindTradeSell {
		side = "sell"
	}
	res.Attributes["trade.symbol"] = s.pick(tradeSymbols)
	res.Attributes["trade.side"] = side
	res.Attributes["trade.quantity"] = 1 + s.randIntN(500)
	res.Attributes["trade.price"] = s.randPrice()

	validate := res.Latency / 5
	risk := res.Latency * 3 / 10
	execute := res.Latency * 9 / 20
	res.Events = []ChildEvent{
		{Name: "order.validate", Offset: 0, Duration: validate},
		{Name: "risk.check", Offset: validate, Duration: risk},
		{Name: "order.execute", Offset: validate + risk, Duration: execute},
	}
	if res.Failed() {
		last := &res.Events[len(res.Events)-1]
		last.Attributes = map[string]interface{}{"error": true}
	}
}

func (s *Simulator) scriptLoad(req OperationRequest, p Policy, res *OperationResult) {
	fanout := p.Fanout
	if n, ok := req.IntParam("fanout"); ok && n > 0 {
		fanout = n
	}
	if fanout < 1 {
		fanout = 1
	}
	step := res.Latency / time.Duration(fanout+1)
	for i := 0; i < fanout; i++ {
		res.Events = append(res.Events, ChildEvent{
			Name:       "burst.operation",
			Offset:     time.Duration(i+1) * step,
			Attributes: map[string]interface{}{"burst.index": i},
		})
	}
	res.Attributes["load.fanout"] = fanout
}

func userID(n int) string {
	return fmt.Sprintf("user-%04d", n)
}
