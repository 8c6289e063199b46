package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestore-collection/internal/shared/logger"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Event types published by the collection layer
const (
	// EventTypeCollectionWritten carries a write summary after a successful write
	EventTypeCollectionWritten = "collection.written"
	// EventTypeCollectionDeleted is published once a whole collection was wiped
	EventTypeCollectionDeleted = "collection.deleted"
)

// Event is anything published on the bus
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
	Source() string
}

// Handler reacts to one event; a returned error triggers a retry
type Handler func(ctx context.Context, event Event) error

// EventBusInterface is what publishers and subscribers depend on
type EventBusInterface interface {
	Subscribe(eventType string, handler Handler)
	Publish(ctx context.Context, event Event) error
	SubscriberCount(eventType string) int
}

// EventBus is an in-process bus. Every handler of an event runs even when
// an earlier one failed; Publish reports all failures together.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	log         logger.Logger
	opts        Options
}

var _ EventBusInterface = (*EventBus)(nil)

// Options tune delivery
type Options struct {
	// Concurrent runs the handlers of one event in parallel.
	// Publish still waits for all of them.
	Concurrent bool
	Retries    int
	// Backoff is multiplied by the attempt number
	Backoff time.Duration
}

func DefaultOptions() Options {
	return Options{Retries: 3, Backoff: 100 * time.Millisecond}
}

// NewEventBus creates a sequential bus with DefaultOptions
func NewEventBus(log logger.Logger) *EventBus {
	return NewEventBusWithOptions(log, DefaultOptions())
}

func NewEventBusWithOptions(log logger.Logger, opts Options) *EventBus {
	if log == nil {
		log = logger.Nop()
	}
	return &EventBus{
		subscribers: make(map[string][]Handler),
		log:         log.WithComponent("event-bus"),
		opts:        opts,
	}
}

func (b *EventBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	n := len(b.subscribers[eventType])
	b.mu.Unlock()
	b.log.Debugf("%s now has %d subscribers", eventType, n)
}

func (b *EventBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Publish delivers event to every handler of its type
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := append([]Handler(nil), b.subscribers[event.Type()]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}
	b.log.WithContext(ctx).Debugf("delivering %s from %s to %d subscribers", event.Type(), event.Source(), len(subs))

	if !b.opts.Concurrent {
		var err error
		for i, h := range subs {
			err = multierr.Append(err, b.deliver(ctx, event, h, i))
		}
		return err
	}

	var (
		g   errgroup.Group
		mu  sync.Mutex
		err error
	)
	for i, h := range subs {
		i, h := i, h
		g.Go(func() error {
			if herr := b.deliver(ctx, event, h, i); herr != nil {
				mu.Lock()
				err = multierr.Append(err, herr)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return err
}

// deliver runs one subscriber, retrying with a linear backoff
func (b *EventBus) deliver(ctx context.Context, event Event, h Handler, idx int) error {
	attempts := b.opts.Retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = h(ctx, event); err == nil {
			return nil
		}
		b.log.Errorf("subscriber %d of %s failed (attempt %d/%d): %v", idx, event.Type(), attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("subscriber %d of %s: %w", idx, event.Type(), ctx.Err())
		case <-time.After(time.Duration(attempt) * b.opts.Backoff):
		}
	}
	return fmt.Errorf("subscriber %d of %s gave up after %d attempts: %w", idx, event.Type(), attempts, err)
}

type message struct {
	kind   string
	data   interface{}
	at     time.Time
	source string
}

// NewEvent creates an event stamped with the current UTC time
func NewEvent(eventType string, data interface{}, source string) Event {
	return message{kind: eventType, data: data, at: time.Now().UTC(), source: source}
}

func (m message) Type() string         { return m.kind }
func (m message) Data() interface{}    { return m.data }
func (m message) Timestamp() time.Time { return m.at }
func (m message) Source() string       { return m.source }
