package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/trezcool/academia/core"
)

// Setup registers the global tracer provider, exporting spans over OTLP/HTTP.
// Tracing is disabled, and spans are no-ops, when no endpoint is configured.
// The returned shutdown flushes pending spans.
func Setup(ctx context.Context, conf *core.Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if conf.Telemetry.OTLPEndpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(conf.Telemetry.OTLPEndpoint))
	if err != nil {
		return noop, errors.Wrap(err, "creating OTLP exporter")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(conf.AppName),
			semconv.ServiceVersion(conf.Build),
			semconv.DeploymentEnvironment(conf.Env),
		),
	)
	if err != nil {
		return noop, errors.Wrap(err, "creating telemetry resource")
	}

	sampler := sdktrace.AlwaysSample()
	if r := conf.Telemetry.SampleRatio; r > 0 && r < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(r))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
