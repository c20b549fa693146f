package config

import (
	"context"
	"errors"
	"os"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/version"
)

const StdoutEndpoint = "stdout"

type Telemetry struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
}

// SetupTelemetry installs global tracer and meter providers which export to
// TelemetryEndpoint.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName("crewchief"),
			semconv.ServiceVersion(version.Version),
		))
	if err != nil {
		return nil, err
	}
	traceExporter, metricExporter, err := newExporters(ctx)
	if err != nil {
		return nil, err
	}
	ret := &Telemetry{
		tracer: trace.NewTracerProvider(
			trace.WithBatcher(traceExporter),
			trace.WithResource(res),
		),
		meter: metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(metricExporter,
				metric.WithInterval(15*time.Second))),
			metric.WithResource(res),
		),
	}
	otel.SetTracerProvider(ret.tracer)
	otel.SetMeterProvider(ret.meter)

	err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func newExporters(ctx context.Context) (
	trace.SpanExporter, metric.Exporter, error,
) {
	if TelemetryEndpoint == StdoutEndpoint {
		te, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, nil, err
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, nil, err
		}
		return te, me, nil
	}
	te, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(TelemetryEndpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	me, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	return te, me, nil
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := errors.Join(
		t.tracer.Shutdown(ctx),
		t.meter.Shutdown(ctx),
	)
	if err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}
