package telemetry

import (
	"context"
	"time"
)

// NoOpProvider discards everything. It is the default when no provider is
// configured.
type NoOpProvider struct{}

// NewNoOp creates a no-op provider.
func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	return ctx, noOpSpan{}
}

func (n *NoOpProvider) RecordPopulate(ctx context.Context, mode string, success bool, duration time.Duration, flagCount int) {
}

func (n *NoOpProvider) RecordPointFetch(ctx context.Context, flagKey string, success bool, duration time.Duration) {
}

func (n *NoOpProvider) RecordLookup(ctx context.Context, flagKey string, hit bool) {}

func (n *NoOpProvider) Shutdown(ctx context.Context) error { return nil }

type noOpSpan struct{}

func (noOpSpan) End() {}
func (noOpSpan) SetAttributes(...Attribute) {}
func (noOpSpan) RecordError(error) {}
