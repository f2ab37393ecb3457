package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/OrlandoBitencourt/flagscope"

// OTelProvider implements Provider using the global OpenTelemetry
// tracer and meter providers.
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	populates        metric.Int64Counter
	populateDuration metric.Float64Histogram
	pointFetches     metric.Int64Counter
	pointDuration    metric.Float64Histogram
	lookups          metric.Int64Counter
}

// NewOTel creates a provider bound to the global providers.
func NewOTel() (*OTelProvider, error) {
	return NewOTelWith(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewOTelWith creates a provider bound to explicit providers.
func NewOTelWith(tp trace.TracerProvider, mp metric.MeterProvider) (*OTelProvider, error) {
	o := &OTelProvider{
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.populates, err = o.meter.Int64Counter(
		"flagscope.populate.total",
		metric.WithDescription("Number of bulk populate attempts"),
	)
	if err != nil {
		return err
	}

	o.populateDuration, err = o.meter.Float64Histogram(
		"flagscope.populate.duration",
		metric.WithDescription("Duration of bulk populate attempts"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.pointFetches, err = o.meter.Int64Counter(
		"flagscope.point_fetch.total",
		metric.WithDescription("Number of single flag fetches"),
	)
	if err != nil {
		return err
	}

	o.pointDuration, err = o.meter.Float64Histogram(
		"flagscope.point_fetch.duration",
		metric.WithDescription("Duration of single flag fetches"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.lookups, err = o.meter.Int64Counter(
		"flagscope.lookups",
		metric.WithDescription("Number of flag store lookups"),
	)
	return err
}

// StartSpan creates a span.
func (o *OTelProvider) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(convert(attrs)...))
	return ctx, &otelSpan{span: span}
}

// RecordPopulate records one bulk populate attempt.
func (o *OTelProvider) RecordPopulate(ctx context.Context, mode string, success bool, duration time.Duration, flagCount int) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	)
	o.populates.Add(ctx, 1, attrs)
	o.populateDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordPointFetch records one single-flag fetch.
func (o *OTelProvider) RecordPointFetch(ctx context.Context, flagKey string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("flag.key", flagKey),
		attribute.Bool("success", success),
	)
	o.pointFetches.Add(ctx, 1, attrs)
	o.pointDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordLookup records a store read for flagKey.
func (o *OTelProvider) RecordLookup(ctx context.Context, flagKey string, hit bool) {
	o.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag.key", flagKey),
		attribute.Bool("hit", hit),
	))
}

// Shutdown is a no-op; SDK providers are owned by whoever installed them.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	return nil
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convert(attrs)...)
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func convert(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		switch v := attr.Value.(type) {
		case string:
			out = append(out, attribute.String(attr.Key, v))
		case int:
			out = append(out, attribute.Int(attr.Key, v))
		case int64:
			out = append(out, attribute.Int64(attr.Key, v))
		case bool:
			out = append(out, attribute.Bool(attr.Key, v))
		case float64:
			out = append(out, attribute.Float64(attr.Key, v))
		}
	}
	return out
}
