package eventstream

import "context"

// Publisher publishes run lifecycle events to an event stream backend.
// Publish failures are logged by callers and never fail the run.
type Publisher interface {
	Publish(ctx context.Context, event *RunEvent) error
	Close() error
}
