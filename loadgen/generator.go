// Package loadgen drives the simulator on a timer so a running
// service produces a steady stream of traces and metrics without any
// external traffic. The mix of operation kinds, the dispatch interval,
// and the worker cap all come from configuration.
package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsimlab/opsim/core"
	"github.com/opsimlab/opsim/telemetry"
)

// DefaultWeights is the traffic mix used when the configuration does
// not specify one. Weights are relative shares, not percentages.
var DefaultWeights = map[core.Kind]int{
	core.KindService:     30,
	core.KindDistributed: 15,
	core.KindTopology:    10,
	core.KindEvent:       10,
	core.KindSLOSuccess:  10,
	core.KindSLOFail:     5,
	core.KindSLOLatency:  10,
	core.KindTradeBuy:    5,
	core.KindTradeSell:   5,
}

// Generator dispatches synthetic operations on a jittered interval and
// emits the resulting records through a sink. Stop it by canceling the
// context passed to Run.
type Generator struct {
	cfg    core.LoadGenConfig
	sim    *core.Simulator
	sink   core.Sink
	logger core.Logger

	kinds      []core.Kind
	cumWeights []int
	weightSum  int

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	dispatched atomic.Int64
}

// Option adjusts a Generator beyond its configuration.
type Option func(*Generator)

// WithSeed makes kind selection and jitter deterministic.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, 1))
	}
}

// NewGenerator builds a generator from configuration. A nil simulator,
// sink, or logger falls back to defaults, so tests and the command
// line can pass only what they care about.
func NewGenerator(cfg core.LoadGenConfig, sim *core.Simulator, sink core.Sink, logger core.Logger, opts ...Option) (*Generator, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		return nil, fmt.Errorf("jitter %v must be in [0, 1): %w", cfg.Jitter, core.ErrInvalidConfiguration)
	}

	weights := DefaultWeights
	if len(cfg.Weights) > 0 {
		weights = make(map[core.Kind]int, len(cfg.Weights))
		for name, w := range cfg.Weights {
			kind, err := core.ParseKind(name)
			if err != nil {
				return nil, fmt.Errorf("traffic mix: %w", err)
			}
			weights[kind] = w
		}
	}
	kinds, cum, sum, err := buildMix(weights)
	if err != nil {
		return nil, err
	}

	if sim == nil {
		if sim, err = core.NewSimulator(); err != nil {
			return nil, err
		}
	}
	if sink == nil {
		sink = &core.NoOpSink{}
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	g := &Generator{
		cfg:        cfg,
		sim:        sim,
		sink:       sink,
		logger:     logger,
		kinds:      kinds,
		cumWeights: cum,
		weightSum:  sum,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// buildMix turns a weight map into a cumulative table in Kinds order,
// skipping zero weights.
func buildMix(weights map[core.Kind]int) ([]core.Kind, []int, int, error) {
	kinds := make([]core.Kind, 0, len(weights))
	cum := make([]int, 0, len(weights))
	sum := 0
	for _, k := range core.Kinds() {
		w, present := weights[k]
		if !present || w == 0 {
			continue
		}
		if w < 0 {
			return nil, nil, 0, fmt.Errorf("weight for %s must not be negative: %w", k, core.ErrInvalidConfiguration)
		}
		sum += w
		kinds = append(kinds, k)
		cum = append(cum, sum)
	}
	if sum == 0 {
		return nil, nil, 0, fmt.Errorf("traffic mix has no positive weights: %w", core.ErrInvalidConfiguration)
	}
	return kinds, cum, sum, nil
}

// Run dispatches operations until ctx is canceled or the configured
// operation budget is exhausted. It blocks, waits for in-flight
// operations before returning, and returns nil on a clean stop.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info("Load generator started", map[string]interface{}{
		"interval_ms": g.cfg.Interval.Milliseconds(),
		"jitter":      g.cfg.Jitter,
		"workers":     g.cfg.Workers,
		"mix_kinds":   len(g.kinds),
	})

	slots := make(chan struct{}, g.cfg.Workers)
	var wg sync.WaitGroup

	stop := func(message string) error {
		wg.Wait()
		g.logger.Info(message, map[string]interface{}{
			"operations": g.Operations(),
		})
		return nil
	}

	timer := time.NewTimer(g.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return stop("Load generator stopped")
		case <-timer.C:
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return stop("Load generator stopped")
		}

		kind := g.pickKind()
		n := g.dispatched.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			g.runOnce(ctx, kind)
		}()

		if g.cfg.MaxOperations > 0 && n >= g.cfg.MaxOperations {
			return stop("Load generator finished")
		}

		timer.Reset(g.nextDelay())
	}
}

// Burst runs n operations immediately, capped at the worker limit, and
// waits for them to finish. Useful for smoke tests and for seeding
// dashboards.
func (g *Generator) Burst(ctx context.Context, n int) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		kind := g.pickKind()
		g.dispatched.Add(1)
		eg.Go(func() error {
			g.runOnce(egCtx, kind)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Operations reports how many operations have been dispatched so far.
func (g *Generator) Operations() int64 {
	return g.dispatched.Load()
}

// runOnce simulates a single operation and emits its record.
func (g *Generator) runOnce(ctx context.Context, kind core.Kind) {
	telemetry.Counter(telemetry.MetricLoadGenTicks, "kind", string(kind))
	telemetry.UpDown(telemetry.MetricLoadGenInflight, 1)
	defer telemetry.UpDown(telemetry.MetricLoadGenInflight, -1)

	req := core.NewOperationRequest(kind, nil)
	res, err := g.sim.Simulate(req)
	if err != nil {
		g.logger.Error("Simulation failed", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return
	}

	rec := core.NewRecord(req, res, core.OriginLoadGen)
	if err := g.sink.Emit(ctx, rec); err != nil {
		g.logger.Error("Failed to emit record", map[string]interface{}{
			"kind":       string(kind),
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
}

// pickKind draws a kind from the cumulative weight table.
func (g *Generator) pickKind() core.Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	target := g.rng.IntN(g.weightSum)
	for i, cum := range g.cumWeights {
		if target < cum {
			return g.kinds[i]
		}
	}
	return g.kinds[len(g.kinds)-1]
}

// nextDelay jitters the interval by up to the configured fraction so
// dispatch does not beat in lockstep with metric collection.
func (g *Generator) nextDelay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg.Jitter == 0 {
		return g.cfg.Interval
	}
	spread := (g.rng.Float64()*2 - 1) * g.cfg.Jitter
	return time.Duration(float64(g.cfg.Interval) * (1 + spread))
}
