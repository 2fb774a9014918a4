package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/opsimlab/opsim/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type captureSink struct {
	mu      sync.Mutex
	records []core.Record
}

func (s *captureSink) Emit(_ context.Context, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) Shutdown(context.Context) error { return nil }

func (s *captureSink) snapshot() []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Record(nil), s.records...)
}

// gateSink tracks the peak number of concurrent Emit calls.
type gateSink struct {
	captureSink
	inflight atomic.Int64
	peak     atomic.Int64
}

func (s *gateSink) Emit(ctx context.Context, rec core.Record) error {
	n := s.inflight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	s.inflight.Add(-1)
	return s.captureSink.Emit(ctx, rec)
}

func newTestGenerator(t *testing.T, cfg core.LoadGenConfig, sink core.Sink) *Generator {
	t.Helper()
	sim, err := core.NewSimulator(core.WithSeed(42))
	require.NoError(t, err)
	gen, err := NewGenerator(cfg, sim, sink, &core.NoOpLogger{}, WithSeed(42))
	require.NoError(t, err)
	return gen
}

func TestRunStopsAtBudget(t *testing.T) {
	sink := &captureSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{
		Interval:      time.Millisecond,
		Workers:       4,
		MaxOperations: 50,
	}, sink)

	done := make(chan error, 1)
	go func() { done <- gen.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generator did not stop at its operation budget")
	}

	records := sink.snapshot()
	assert.Len(t, records, 50)
	assert.EqualValues(t, 50, gen.Operations())
	for _, rec := range records {
		assert.Equal(t, core.OriginLoadGen, rec.Origin)
		assert.True(t, rec.Kind.Valid())
		assert.NotEmpty(t, rec.ID)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := &captureSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{
		Interval: time.Millisecond,
		Workers:  2,
	}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gen.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("generator did not stop after cancellation")
	}
	assert.NotEmpty(t, sink.snapshot())
}

func TestTrafficMixRespectsWeights(t *testing.T) {
	sink := &captureSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{
		Interval:      time.Millisecond,
		Workers:       4,
		MaxOperations: 300,
		Weights: map[string]int{
			"service":     1,
			"trade_buy":   1,
			"slo-latency": 0,
		},
	}, sink)

	require.NoError(t, gen.Run(context.Background()))

	seen := make(map[core.Kind]int)
	for _, rec := range sink.snapshot() {
		seen[rec.Kind]++
	}
	assert.Len(t, seen, 2, "zero-weight kinds must never be picked")
	assert.Positive(t, seen[core.KindService])
	assert.Positive(t, seen[core.KindTradeBuy])
}

func TestBurst(t *testing.T) {
	sink := &captureSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{Interval: time.Second, Workers: 8}, sink)

	require.NoError(t, gen.Burst(context.Background(), 25))
	assert.Len(t, sink.snapshot(), 25)
	assert.EqualValues(t, 25, gen.Operations())
}

func TestBurstHonorsCancellation(t *testing.T) {
	sink := &captureSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{Interval: time.Second, Workers: 8}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, gen.Burst(ctx, 10), context.Canceled)
	assert.Empty(t, sink.snapshot())
}

func TestWorkerCap(t *testing.T) {
	sink := &gateSink{}
	gen := newTestGenerator(t, core.LoadGenConfig{
		Interval:      200 * time.Microsecond,
		Workers:       3,
		MaxOperations: 30,
	}, sink)

	require.NoError(t, gen.Run(context.Background()))

	assert.LessOrEqual(t, sink.peak.Load(), int64(3), "in-flight operations must not exceed the worker cap")
	assert.Len(t, sink.snapshot(), 30)
}

func TestNewGeneratorValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     core.LoadGenConfig
		wantErr error
	}{
		{
			name: "unknown kind in mix",
			cfg: core.LoadGenConfig{
				Weights: map[string]int{"mystery": 5},
			},
			wantErr: core.ErrUnsupportedKind,
		},
		{
			name: "negative weight",
			cfg: core.LoadGenConfig{
				Weights: map[string]int{"service": -1},
			},
			wantErr: core.ErrInvalidConfiguration,
		},
		{
			name: "all weights zero",
			cfg: core.LoadGenConfig{
				Weights: map[string]int{"service": 0, "event": 0},
			},
			wantErr: core.ErrInvalidConfiguration,
		},
		{
			name:    "jitter out of range",
			cfg:     core.LoadGenConfig{Jitter: 1.0},
			wantErr: core.ErrInvalidConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.cfg, nil, nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewGeneratorDefaults(t *testing.T) {
	gen, err := NewGenerator(core.LoadGenConfig{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, gen.cfg.Interval)
	assert.Equal(t, 4, gen.cfg.Workers)
	assert.NotNil(t, gen.sim)
	assert.NotNil(t, gen.sink)
}

func TestDefaultWeights(t *testing.T) {
	kinds, _, sum, err := buildMix(DefaultWeights)
	require.NoError(t, err)
	assert.Equal(t, 100, sum)
	assert.Len(t, kinds, 9, "synthetic burst operations stay out of the default mix")
}
