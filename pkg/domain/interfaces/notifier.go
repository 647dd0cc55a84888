package interfaces

import "context"

// Notifier pushes a "record changed, refresh" signal to connected clients
// after state transitions that change displayed status. Failures are logged
// by callers, never fatal to the transition.
type Notifier interface {
	RecordChanged(ctx context.Context, kind, id, message string) error
}
