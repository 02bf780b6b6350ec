package counter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyvisor/internal/event"
	"keyvisor/internal/store"
	"keyvisor/internal/supervisor"
)

func TestWorker_EmitsIncrementsUntilCancelled(t *testing.T) {
	w := NewWorker(WorkerConfig{Interval: 5 * time.Millisecond})
	view := supervisor.NewView("c1", State{ID: "c1"})
	task, err := w(event.NewBus(), view)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []event.Event
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- task(ctx, func(e event.Event) bool {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
			return true
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range got {
		assert.Equal(t, TypeIncrement, e.EventType())
		assert.Equal(t, "c1", e.EventKey())
	}
}

func TestWorker_CompletesAtLimit(t *testing.T) {
	w := NewWorker(WorkerConfig{Interval: time.Hour})
	view := supervisor.NewView("c1", State{ID: "c1", Limit: 2})
	task, err := w(event.NewBus(), view)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- task(context.Background(), func(event.Event) bool { return true }) }()

	view.Offer(State{ID: "c1", Count: 1, Limit: 2})
	view.Offer(State{ID: "c1", Count: 2, Limit: 2})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not complete at limit")
	}
}

func TestWorker_StopsWhenEmitRefused(t *testing.T) {
	w := NewWorker(WorkerConfig{Interval: time.Millisecond})
	task, err := w(event.NewBus(), supervisor.NewView("c1", State{ID: "c1"}))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- task(context.Background(), func(event.Event) bool { return false }) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored refused emit")
	}
}

// TestLoop runs the full bus -> store -> supervisor -> bus cycle.
func TestLoop_CounterReachesLimitAndStops(t *testing.T) {
	bus := event.NewBus()
	st := store.New[State](Reduce, nil)
	st.Attach(bus, Types()...)

	sup, err := supervisor.New(supervisor.Config[State]{
		Kind:   "counter",
		Worker: NewWorker(WorkerConfig{Interval: 2 * time.Millisecond}),
		Bus:    bus,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for e := range sup.Events() {
			bus.Publish(e)
		}
	}()
	go sup.Run(ctx, st.Watch(ctx))

	bus.Publish(Add("a", 3, 0))
	bus.Publish(Add("b", 0, 0))

	require.Eventually(t, func() bool {
		s, _ := st.Get("a")
		return s.Count == 3
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		s, ok := sup.Lookup("a")
		return ok && s.State == supervisor.StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	bus.Publish(Remove("b"))
	require.Eventually(t, func() bool {
		_, ok := sup.Lookup("b")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	frozen, _ := st.Get("a")
	time.Sleep(20 * time.Millisecond)
	after, _ := st.Get("a")
	assert.Equal(t, frozen, after)
	assert.Equal(t, 3, after.Count)
}
