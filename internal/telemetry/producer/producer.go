// Package producer publishes registry telemetry events to a message broker.
package producer

import (
	"context"

	"identity-registry/internal/telemetry"
)

// Producer emits telemetry events. It satisfies telemetry.EventEmitter so it can be combined
// with other emitters. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from EmitAsync if needed.
	Emit(ctx context.Context, event *telemetry.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
