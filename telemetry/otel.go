package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsimlab/opsim/core"
)

// instrumentationName scopes every tracer and meter this module creates.
const instrumentationName = "github.com/opsimlab/opsim"

// metricExportInterval is how often the periodic reader pushes metrics.
const metricExportInterval = 15 * time.Second

// Provider owns the OpenTelemetry pipeline: exporters, tracer and
// meter providers, and the propagator. Init installs the providers
// globally so instrumentation like otelhttp picks them up too.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	config         Config
}

// Init builds and installs the telemetry pipeline. With no endpoint
// configured the exporters write to stdout; with an endpoint they ship
// OTLP over the configured protocol. A disabled config, or
// OTEL_SDK_DISABLED=true, yields a provider backed by the global
// no-op implementations, so callers never need nil checks.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled || os.Getenv("OTEL_SDK_DISABLED") == "true" {
		return &Provider{
			tracer: otel.Tracer("noop"),
			meter:  otel.Meter("noop"),
			config: cfg,
		}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
		if serviceName == "" {
			serviceName = "opsim"
		}
	}

	res := newTelemetryResource(serviceName)

	traceExporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricExporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg)),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(metricExportInterval))),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p := &Provider{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracerProvider.Tracer(instrumentationName),
		meter:          meterProvider.Meter(instrumentationName),
		config:         cfg,
	}

	// Bind the package-level metric helpers to this pipeline.
	setGlobalInstruments(NewMetricInstruments(p.meter))

	return p, nil
}

// newTelemetryResource describes this process for exported telemetry.
func newTelemetryResource(serviceName string) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion()),
		semconv.DeploymentEnvironmentKey.String(deploymentEnvironment()),
	}

	// Kubernetes attributes (if running in K8s)
	if ns := os.Getenv("KUBERNETES_NAMESPACE"); ns != "" {
		attrs = append(attrs,
			semconv.K8SNamespaceNameKey.String(ns),
			semconv.K8SPodNameKey.String(os.Getenv("HOSTNAME")),
		)
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// newTraceExporter selects the span exporter: stdout when no endpoint
// is configured, otherwise OTLP over gRPC or HTTP.
func newTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		if cfg.PrettyPrint {
			return stdouttrace.New(stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New()
	}

	switch cfg.Protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q: %w", cfg.Protocol, core.ErrInvalidConfiguration)
	}
}

// newMetricExporter mirrors newTraceExporter for the metrics pipeline.
func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	if cfg.Endpoint == "" {
		if cfg.PrettyPrint {
			return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		}
		return stdoutmetric.New()
	}

	switch cfg.Protocol {
	case "", "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q: %w", cfg.Protocol, core.ErrInvalidConfiguration)
	}
}

// newSampler configures sampling from the profile rate, overridable
// through the standard OTEL_TRACES_SAMPLER variables.
func newSampler(cfg Config) sdktrace.Sampler {
	ratio := cfg.SamplingRate
	if arg := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); arg != "" && os.Getenv("OTEL_TRACES_SAMPLER") == "traceidratio" {
		if parsed, err := strconv.ParseFloat(arg, 64); err == nil {
			ratio = parsed
		}
	}
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// serviceVersion gets the service version from environment or default
func serviceVersion() string {
	if version := os.Getenv("OTEL_SERVICE_VERSION"); version != "" {
		return version
	}
	return "1.0.0"
}

// deploymentEnvironment gets the deployment environment
func deploymentEnvironment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "production"
	}
	return "development"
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the provider's meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Active reports whether a real export pipeline is behind this
// provider, as opposed to the no-op fallback.
func (p *Provider) Active() bool {
	return p.tracerProvider != nil
}

// Shutdown flushes buffered telemetry and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
