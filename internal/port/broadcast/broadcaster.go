// Package broadcast defines the port for pushing real-time events to
// connected dashboards.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients. Event types
// reuse the message queue subject names, e.g. "hitl.created".
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
