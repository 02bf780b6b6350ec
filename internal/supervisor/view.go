package supervisor

import (
	"context"
	"sync"

	"keyvisor/internal/common/chanq"
)

// View is a live, deduplicated projection of one key's state. It always has a
// current value, seeded with the state the key had when its worker started.
//
// A View never emits on key absence. Removal is signalled separately through
// Removed, after which no further values are offered.
type View[S comparable] struct {
	key string

	mu      sync.Mutex
	cur     S
	version uint64
	subs    map[*chanq.Queue[S]]struct{}

	removed     chan struct{}
	removedOnce sync.Once
}

func newView[S comparable](key string, initial S) *View[S] {
	return &View[S]{
		key:     key,
		cur:     initial,
		subs:    make(map[*chanq.Queue[S]]struct{}),
		removed: make(chan struct{}),
	}
}

// NewView returns a standalone view seeded with initial. Supervisors create
// their own views; this is useful when driving a Worker directly.
func NewView[S comparable](key string, initial S) *View[S] { return newView(key, initial) }

// Key returns the key this view is scoped to.
func (v *View[S]) Key() string { return v.key }

// Current returns the most recent value.
func (v *View[S]) Current() S {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Version counts distinct values emitted after the seed.
func (v *View[S]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Removed is closed when the key leaves the collection.
func (v *View[S]) Removed() <-chan struct{} { return v.removed }

// Offer projects a new state into the view. It reports whether the value
// differed from the current one and was emitted. Offers after removal are
// ignored.
func (v *View[S]) Offer(s S) bool {
	select {
	case <-v.removed:
		return false
	default:
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if s == v.cur {
		return false
	}
	v.cur = s
	v.version++
	for q := range v.subs {
		q.Push(s)
	}
	return true
}

// Changes returns a channel that first receives the current value and then
// every later distinct value, in order. It is closed when ctx is done or the
// key is removed.
func (v *View[S]) Changes(ctx context.Context) <-chan S {
	ctx, cancel := context.WithCancel(ctx)
	q := chanq.New[S]()

	v.mu.Lock()
	q.Push(v.cur)
	v.subs[q] = struct{}{}
	v.mu.Unlock()

	go func() {
		select {
		case <-v.removed:
			cancel()
		case <-ctx.Done():
		}
	}()

	out := make(chan S)
	go func() {
		defer cancel()
		q.Pump(ctx, out)
		v.mu.Lock()
		delete(v.subs, q)
		v.mu.Unlock()
	}()
	return out
}

// remove closes the removal signal. Safe to call more than once.
func (v *View[S]) remove() {
	v.removedOnce.Do(func() { close(v.removed) })
}
