// Package pubsub fans typed events out to subscribers.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened. Packages declare their own values.
type EventType string

// Event is one published occurrence with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher publishes events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
