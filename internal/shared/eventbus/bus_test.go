package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus(nil)
	var got Event
	bus.Subscribe(EventTypeCollectionWritten, func(ctx context.Context, event Event) error {
		got = event
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), NewEvent(EventTypeCollectionWritten, "payload", "test")))
	require.NotNil(t, got)
	assert.Equal(t, "payload", got.Data())
	assert.Equal(t, "test", got.Source())
	assert.False(t, got.Timestamp().IsZero())
	assert.Equal(t, 1, bus.SubscriberCount(EventTypeCollectionWritten))
	assert.Equal(t, 0, bus.SubscriberCount(EventTypeCollectionDeleted))
}

func TestEventBus_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewEventBus(nil).Publish(context.Background(), NewEvent("nobody", nil, "test")))
}

func TestEventBus_AllHandlersRunDespiteFailures(t *testing.T) {
	bus := NewEventBusWithOptions(nil, Options{})
	var ran int32
	bus.Subscribe("ev", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&ran, 1)
		return errors.New("first")
	})
	bus.Subscribe("ev", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&ran, 1)
		return errors.New("second")
	})
	bus.Subscribe("ev", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	err := bus.Publish(context.Background(), NewEvent("ev", nil, "test"))
	assert.EqualValues(t, 3, ran)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestEventBus_AsyncWaitsForHandlers(t *testing.T) {
	bus := NewEventBusWithOptions(nil, Options{Concurrent: true})
	var ran int32
	for i := 0; i < 5; i++ {
		bus.Subscribe("async", func(ctx context.Context, event Event) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	bus.Subscribe("async", func(ctx context.Context, event Event) error {
		return errors.New("boom")
	})

	err := bus.Publish(context.Background(), NewEvent("async", nil, "test"))
	assert.EqualValues(t, 5, atomic.LoadInt32(&ran))
	assert.ErrorContains(t, err, "boom")
}

func TestEventBus_RetriesThenFails(t *testing.T) {
	bus := NewEventBusWithOptions(nil, Options{Retries: 2, Backoff: time.Millisecond})
	attempts := 0
	bus.Subscribe(EventTypeCollectionWritten, func(ctx context.Context, event Event) error {
		attempts++
		return errors.New("store down")
	})

	err := bus.Publish(context.Background(), NewEvent(EventTypeCollectionWritten, nil, "test"))
	assert.ErrorContains(t, err, "store down")
	assert.Equal(t, 3, attempts)
}

func TestEventBus_RetrySucceeds(t *testing.T) {
	bus := NewEventBusWithOptions(nil, Options{Retries: 3, Backoff: time.Millisecond})
	attempts := 0
	bus.Subscribe("flaky", func(ctx context.Context, event Event) error {
		attempts++
		if attempts < 2 {
			return errors.New("once")
		}
		return nil
	})

	assert.NoError(t, bus.Publish(context.Background(), NewEvent("flaky", nil, "test")))
	assert.Equal(t, 2, attempts)
}

func TestEventBus_RetryStopsOnCancel(t *testing.T) {
	bus := NewEventBusWithOptions(nil, Options{Retries: 5, Backoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	bus.Subscribe("x", func(ctx context.Context, event Event) error {
		cancel()
		return errors.New("fail")
	})

	err := bus.Publish(ctx, NewEvent("x", nil, "test"))
	assert.ErrorIs(t, err, context.Canceled)
}
