package telemetry

import (
	"context"
	"log/slog"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupConfig selects the trace exporter.
type SetupConfig struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"flagscope"`

	// Endpoint is the OTLP/HTTP collector URL. Empty disables export.
	Endpoint string `env:"FLAGS_OTEL_ENDPOINT"`

	Logger *slog.Logger `env:"-"`
}

// Setup installs a global tracer provider exporting over OTLP/HTTP and
// routes OpenTelemetry's internal logs to the slog logger. The returned
// function flushes pending spans.
func Setup(ctx context.Context, config SetupConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetLogger(logr.FromSlogHandler(logger.Handler()))

	if config.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(config.Endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(config.ServiceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
