// Package pubsub carries room broadcasts between chat nodes. Every node
// publishes the frames it broadcasts locally and subscribes to all rooms.
package pubsub

import "context"

// Bus is a node-to-node transport for room broadcasts.
type Bus interface {
	// Publish sends ev to every subscribed node, the sender included.
	Publish(ctx context.Context, ev *Event) error
	// Subscribe streams events for all rooms until ctx is done or the bus is
	// closed. A second call replaces the first subscription.
	Subscribe(ctx context.Context) (<-chan *Event, error)
	Close() error
}

const eventBuffer = 256
