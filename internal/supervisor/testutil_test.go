package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"keyvisor/internal/event"
)

// harness drives a Supervisor through a snapshot channel.
type harness[S comparable] struct {
	t     *testing.T
	sup   *Supervisor[S]
	snaps chan Snapshot[S]
	done  chan error
	stop  context.CancelFunc
}

func newHarness[S comparable](t *testing.T, w Worker[S]) *harness[S] {
	t.Helper()
	sup, err := New(Config[S]{
		Kind:   "test",
		Worker: w,
		Bus:    event.NewBus(),
		OnFailure: func(key string, err error) event.Event {
			return event.New("worker.failed", key, err.Error())
		},
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness[S]{t: t, sup: sup, snaps: make(chan Snapshot[S]), done: make(chan error, 1), stop: cancel}
	go func() { h.done <- sup.Run(ctx, h.snaps) }()
	t.Cleanup(h.close)
	return h
}

// feed hands snap to the supervisor; it returns once the previous snapshot
// has been fully applied and snap has been received.
func (h *harness[S]) feed(snap Snapshot[S]) {
	h.t.Helper()
	select {
	case h.snaps <- snap:
	case <-time.After(2 * time.Second):
		h.t.Fatal("supervisor did not accept snapshot")
	}
}

// sync waits until every earlier snapshot has been applied by feeding an
// identical copy of the latest one.
func (h *harness[S]) sync(latest Snapshot[S]) {
	h.t.Helper()
	h.feed(latest.Clone())
	h.feed(latest.Clone())
}

func (h *harness[S]) close() {
	h.stop()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("supervisor did not stop")
	}
	for range h.sup.Events() {
	}
}

func (h *harness[S]) next() event.Event {
	h.t.Helper()
	select {
	case e, ok := <-h.sup.Events():
		require.True(h.t, ok, "events closed")
		return e
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for worker event")
		return nil
	}
}

func (h *harness[S]) quiet(d time.Duration) {
	h.t.Helper()
	select {
	case e := <-h.sup.Events():
		h.t.Fatalf("unexpected event %s key=%s", e.EventType(), e.EventKey())
	case <-time.After(d):
	}
}

// clock is a manually advanced tick source shared by test workers.
type clock chan struct{}

// tick advances the clock once. It reports false if no worker took the tick.
func (c clock) tick(wait time.Duration) bool {
	select {
	case c <- struct{}{}:
		return true
	case <-time.After(wait):
		return false
	}
}

// tickWorker emits one "tick" per clock tick, carrying the view's current
// state as payload.
func tickWorker[S comparable](c clock) Worker[S] {
	return func(_ Bus, view *View[S]) (Task, error) {
		return func(ctx context.Context, emit Emit) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-c:
					if !emit(event.New("tick", view.Key(), view.Current())) {
						return nil
					}
				}
			}
		}, nil
	}
}
