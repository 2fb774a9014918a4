// Command opsim runs the operation simulator: an HTTP API that
// fabricates realistic-looking operations and exports them as
// OpenTelemetry traces and metrics, plus an optional load generator
// that keeps telemetry flowing without external traffic.
//
// Usage:
//
//	opsim                          # defaults, console telemetry
//	opsim -port 9090 -loadgen      # self-driving on another port
//	opsim -config opsim.yaml       # file-based configuration
//	opsim -profile production      # OTLP export to a collector
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsimlab/opsim/core"
	"github.com/opsimlab/opsim/loadgen"
	"github.com/opsimlab/opsim/telemetry"
)

const telemetryShutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "opsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a JSON or YAML configuration file")
		port       = flag.Int("port", 0, "HTTP port (overrides configuration)")
		profile    = flag.String("profile", "", "telemetry profile: development, staging, or production")
		withLoad   = flag.Bool("loadgen", false, "run the load generator even if configuration disables it")
		seed       = flag.Uint64("seed", 0, "seed for deterministic simulation (0 uses random entropy)")
	)
	flag.Parse()

	var opts []core.Option
	if *configPath != "" {
		opts = append(opts, core.WithConfigFile(*configPath))
	}
	if *port != 0 {
		opts = append(opts, core.WithPort(*port))
	}
	if *profile != "" {
		opts = append(opts, core.WithTelemetryProfile(*profile))
	}
	if *seed != 0 {
		opts = append(opts, core.WithRandSeed(*seed))
	}

	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return err
	}
	if *withLoad {
		cfg.LoadGen.Enabled = true
	}

	logger := core.NewProductionLogger(cfg.Logging, cfg.Name)

	telemetryTarget := cfg.Telemetry.Endpoint
	if telemetryTarget == "" {
		telemetryTarget = "console"
	}
	logger.Info("Effective configuration", map[string]interface{}{
		"port":              cfg.Port,
		"telemetry_profile": cfg.Telemetry.Profile,
		"telemetry_target":  telemetryTarget,
		"loadgen":           cfg.LoadGen.Enabled,
		"log_format":        cfg.Logging.Format,
	})

	kinds := make([]string, 0, len(core.Kinds()))
	for _, k := range core.Kinds() {
		kinds = append(kinds, string(k))
	}
	logger.Info("Operation catalog", map[string]interface{}{
		"kinds": kinds,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry failures degrade to a no-op sink instead of refusing
	// to start: a simulator with no export is still useful locally.
	var sink core.Sink = &core.NoOpSink{}
	provider, err := telemetry.Init(ctx, telemetry.FromService(cfg.Telemetry))
	if err != nil {
		logger.Warn("Telemetry unavailable, continuing without export", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("Telemetry shutdown failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
		otelSink, err := telemetry.NewSink(provider, logger)
		if err != nil {
			return err
		}
		sink = otelSink
	}

	policies, err := cfg.PolicyTable()
	if err != nil {
		return err
	}
	simOpts := []core.SimulatorOption{core.WithPolicies(policies)}
	if cfg.RandSeed != 0 {
		simOpts = append(simOpts, core.WithSeed(cfg.RandSeed))
	}
	sim, err := core.NewSimulator(simOpts...)
	if err != nil {
		return err
	}

	svc, err := core.NewService(cfg, sim, sink, logger)
	if err != nil {
		return err
	}

	var gen *loadgen.Generator
	if cfg.LoadGen.Enabled {
		if gen, err = loadgen.NewGenerator(cfg.LoadGen, sim, sink, logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	if gen != nil {
		g.Go(func() error {
			return gen.Run(gctx)
		})
	}

	logger.Info("opsim ready", map[string]interface{}{
		"address":   fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		"loadgen":   cfg.LoadGen.Enabled,
		"telemetry": provider != nil && provider.Active(),
	})

	return g.Wait()
}
