package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Broker delivers each published event to every live subscriber.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[chan Event[T]]struct{}
	closed     bool
	bufferSize int
}

var (
	_ Publisher[struct{}]  = (*Broker[struct{}])(nil)
	_ Subscriber[struct{}] = (*Broker[struct{}])(nil)
)

// NewBroker creates a broker whose subscriptions buffer 64 events.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

// NewBrokerWithBuffer creates a broker with the given subscription buffer.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	if size < 1 {
		size = 1
	}
	return &Broker[T]{subs: make(map[chan Event[T]]struct{}), bufferSize: size}
}

// Subscribe returns a channel of events published from now on. The channel
// is closed when ctx is done or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(chan Event[T], b.bufferSize)
	if b.closed {
		close(sub)
		return sub
	}
	b.subs[sub] = struct{}{}

	context.AfterFunc(ctx, func() { b.unsubscribe(sub) })
	return sub
}

func (b *Broker[T]) unsubscribe(sub chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
}

// Publish sends an event to all subscribers without blocking; a subscriber
// whose buffer is full misses the event.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	event := Event[T]{Type: eventType, Payload: payload, Timestamp: time.Now()}
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Close closes every subscription. Later subscriptions are closed at once.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub)
	}
	clear(b.subs)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
