package telemetry

import (
	"context"

	"github.com/lbliii/bengal/internal/core/ports"
)

var _ ports.Telemetry = (*Noop)(nil)

// Noop is a no-op implementation of ports.Telemetry, used in fast mode and
// in tests.
type Noop struct{}

// NewNoop creates a new Noop recorder.
func NewNoop() *Noop {
	return &Noop{}
}

// Record returns a vertex that discards everything.
func (n *Noop) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, noopVertex{}
}

// Close does nothing.
func (n *Noop) Close() error { return nil }

type noopVertex struct{}

func (noopVertex) Write(p []byte) (int, error) { return len(p), nil }
func (noopVertex) Done(error)                  {}
