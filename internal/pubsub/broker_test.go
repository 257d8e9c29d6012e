package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testEvent EventType = "test"

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for event")
	}
	return Event[T]{}
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(testEvent, "hello")

	event := receive(t, ch)
	require.Equal(t, "hello", event.Payload)
	require.Equal(t, testEvent, event.Type)
	require.False(t, event.Timestamp.IsZero())
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	chans := []<-chan Event[int]{
		broker.Subscribe(context.Background()),
		broker.Subscribe(context.Background()),
	}
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(testEvent, 42)
	for _, ch := range chans {
		require.Equal(t, 42, receive(t, ch).Payload)
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_FullSubscriberMissesEvents(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(testEvent, 1)
	broker.Publish(testEvent, 2)

	require.Equal(t, 1, receive(t, ch).Payload)
	select {
	case e := <-ch:
		require.Failf(t, "unexpected event", "%v", e.Payload)
	default:
	}
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, broker.SubscriberCount())

	late := broker.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok, "subscriptions after close are closed")

	broker.Publish(testEvent, "dropped")
}
