// Package telemetry records traces and metrics for flag population,
// point fetches and store lookups.
package telemetry

import (
	"context"
	"time"
)

// Populate modes.
const (
	ModeAll     = "all"
	ModePreload = "preload"
)

// Provider is the telemetry sink used by the coordinator and resolver.
type Provider interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)

	RecordPopulate(ctx context.Context, mode string, success bool, duration time.Duration, flagCount int)
	RecordPointFetch(ctx context.Context, flagKey string, success bool, duration time.Duration)
	RecordLookup(ctx context.Context, flagKey string, hit bool)

	Shutdown(ctx context.Context) error
}

// Span is a trace span.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

func Int(key string, value int) Attribute { return Attribute{Key: key, Value: value} }

func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }
