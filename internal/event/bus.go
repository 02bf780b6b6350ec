package event

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"keyvisor/internal/common/chanq"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// listener is a channel subscription fed through an unbounded queue.
type listener struct {
	types []string
	q     *chanq.Queue[Event]
}

// Bus is a multiple-producer, multiple-consumer broadcast bus.
// It is safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	listeners     map[string]*listener
	nextID        atomic.Uint64
	log           zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		listeners:     make(map[string]*listener),
		log:           zerolog.Nop(),
	}
}

// SetLogger installs a structured logger used to report handler panics.
func (b *Bus) SetLogger(l zerolog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = l.With().Str("component", "bus").Logger()
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a handler subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				b.subscriptions[eventType] = append(next, subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Listen returns a channel receiving every published event whose type is in
// types (all events when types is empty). Delivery is ordered and lossless.
// The channel is closed once ctx is done.
func (b *Bus) Listen(ctx context.Context, types ...string) <-chan Event {
	l := &listener{types: append([]string(nil), types...), q: chanq.New[Event]()}

	b.mu.Lock()
	id := b.generateID()
	b.listeners[id] = l
	b.mu.Unlock()

	out := make(chan Event)
	go func() {
		l.q.Pump(ctx, out)
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}()
	return out
}

// Publish dispatches an event to all registered handlers and listeners.
// Specific handlers run first, followed by wildcard handlers, each group in
// registration order. A panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	eventType := e.EventType()

	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[eventType]...)
	wildcard := append([]subscription(nil), b.subscriptions["*"]...)
	for _, l := range b.listeners {
		if Matches(e, l.types...) {
			l.q.Push(e)
		}
	}
	log := b.log
	b.mu.RUnlock()

	busPublishedTotal.WithLabelValues(eventType).Inc()

	for _, sub := range specific {
		safeCall(log, sub.handler, e)
	}
	for _, sub := range wildcard {
		safeCall(log, sub.handler, e)
	}
}

// safeCall invokes a handler and recovers from any panics so one misbehaving
// handler cannot block delivery to the others.
func safeCall(log zerolog.Logger, handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			busHandlerPanicsTotal.Inc()
			log.Error().
				Str("event", e.EventType()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
	}()
	handler(e)
}

// generateID creates a unique subscription ID. Caller holds b.mu.
func (b *Bus) generateID() string {
	return "sub-" + strconv.FormatUint(b.nextID.Add(1), 10)
}

// Clear removes all handler subscriptions. Listeners stay attached until
// their contexts end.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the number of active handlers and listeners.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.listeners)
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
