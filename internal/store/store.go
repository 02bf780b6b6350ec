// Package store folds bus events into keyed collection snapshots and streams
// those snapshots to supervisors and other observers.
package store

import (
	"context"
	"maps"
	"sync"

	"keyvisor/internal/common/chanq"
	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

// Reducer folds one event into a snapshot. It must not mutate prev; it
// returns prev itself when the event does not apply.
type Reducer[S comparable] func(prev supervisor.Snapshot[S], e event.Event) supervisor.Snapshot[S]

// Store holds the current snapshot of one collection.
type Store[S comparable] struct {
	mu       sync.RWMutex
	snap     supervisor.Snapshot[S]
	version  uint64
	reduce   Reducer[S]
	watchers map[*chanq.Queue[supervisor.Snapshot[S]]]struct{}

	bus    *event.Bus
	subIDs []string
}

// New returns a store seeded with initial (nil means empty).
func New[S comparable](reduce Reducer[S], initial supervisor.Snapshot[S]) *Store[S] {
	if initial == nil {
		initial = supervisor.Snapshot[S]{}
	}
	return &Store[S]{
		snap:     initial.Clone(),
		reduce:   reduce,
		watchers: make(map[*chanq.Queue[supervisor.Snapshot[S]]]struct{}),
	}
}

// Attach subscribes the store's reducer to the given event types on bus.
// Events are reduced synchronously on the publisher's goroutine.
func (s *Store[S]) Attach(bus *event.Bus, types ...string) {
	s.Detach()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus = bus
	if len(types) == 0 {
		s.subIDs = append(s.subIDs, bus.SubscribeAll(s.Dispatch))
		return
	}
	for _, t := range types {
		s.subIDs = append(s.subIDs, bus.Subscribe(t, s.Dispatch))
	}
}

// Detach removes the subscriptions installed by Attach.
func (s *Store[S]) Detach() {
	s.mu.Lock()
	bus, ids := s.bus, s.subIDs
	s.bus, s.subIDs = nil, nil
	s.mu.Unlock()
	for _, id := range ids {
		bus.Unsubscribe(id)
	}
}

// Dispatch reduces e into the current snapshot and notifies watchers when the
// snapshot changed.
func (s *Store[S]) Dispatch(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.reduce(s.snap, e)
	if next == nil {
		next = supervisor.Snapshot[S]{}
	}
	if maps.Equal(next, s.snap) {
		return
	}
	s.snap = next
	s.version++
	for q := range s.watchers {
		q.Push(next)
	}
}

// Snapshot returns the current snapshot. Callers must not mutate it.
func (s *Store[S]) Snapshot() supervisor.Snapshot[S] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Version counts snapshot changes since construction.
func (s *Store[S]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns the state of key in the current snapshot.
func (s *Store[S]) Get(key string) (S, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap[key]
	return v, ok
}

// Len returns the number of entities in the current snapshot.
func (s *Store[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap)
}

// Watch streams snapshots, starting with the current one and followed by
// every later changed snapshot in order. A slow reader never blocks Dispatch
// and never misses a transition. The channel is closed when ctx is done.
func (s *Store[S]) Watch(ctx context.Context) <-chan supervisor.Snapshot[S] {
	q := chanq.New[supervisor.Snapshot[S]]()
	s.mu.Lock()
	q.Push(s.snap)
	s.watchers[q] = struct{}{}
	s.mu.Unlock()

	out := make(chan supervisor.Snapshot[S])
	go func() {
		q.Pump(ctx, out)
		s.mu.Lock()
		delete(s.watchers, q)
		s.mu.Unlock()
		q.Close()
	}()
	return out
}
