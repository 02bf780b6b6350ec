package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

// setReducer handles "set" (payload int) and "del".
func setReducer(prev supervisor.Snapshot[int], e event.Event) supervisor.Snapshot[int] {
	switch e.EventType() {
	case "set":
		n, _ := event.Payload[int](e)
		if v, ok := prev[e.EventKey()]; ok && v == n {
			return prev
		}
		next := prev.Clone()
		next[e.EventKey()] = n
		return next
	case "del":
		if _, ok := prev[e.EventKey()]; !ok {
			return prev
		}
		next := prev.Clone()
		delete(next, e.EventKey())
		return next
	}
	return prev
}

func recvSnap(t *testing.T, ch <-chan supervisor.Snapshot[int]) supervisor.Snapshot[int] {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestStore_DispatchReduces(t *testing.T) {
	s := New[int](setReducer, nil)
	s.Dispatch(event.New("set", "a", 1))
	s.Dispatch(event.New("set", "b", 2))
	s.Dispatch(event.New("del", "a", nil))

	v, ok := s.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(3), s.Version())
}

func TestStore_UnchangedEventDoesNotBumpVersion(t *testing.T) {
	s := New[int](setReducer, supervisor.Snapshot[int]{"a": 1})
	s.Dispatch(event.New("set", "a", 1))
	s.Dispatch(event.New("other", "a", nil))
	assert.Zero(t, s.Version())
}

func TestStore_AttachToBus(t *testing.T) {
	bus := event.NewBus()
	s := New[int](setReducer, nil)
	s.Attach(bus, "set", "del")
	bus.Publish(event.New("set", "x", 5))
	v, _ := s.Get("x")
	assert.Equal(t, 5, v)

	s.Detach()
	bus.Publish(event.New("set", "x", 6))
	v, _ = s.Get("x")
	assert.Equal(t, 5, v)
	assert.Zero(t, bus.SubscriptionCount())
}

func TestStore_WatchDeliversEveryTransitionInOrder(t *testing.T) {
	s := New[int](setReducer, supervisor.Snapshot[int]{"a": 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Watch(ctx)

	// Nobody reads while these are dispatched.
	for i := 2; i <= 10; i++ {
		s.Dispatch(event.New("set", "a", i))
	}
	s.Dispatch(event.New("del", "a", nil))
	s.Dispatch(event.New("set", "a", 0))

	for i := 1; i <= 10; i++ {
		assert.Equal(t, supervisor.Snapshot[int]{"a": i}, recvSnap(t, ch))
	}
	assert.Equal(t, supervisor.Snapshot[int]{}, recvSnap(t, ch))
	assert.Equal(t, supervisor.Snapshot[int]{"a": 0}, recvSnap(t, ch))
}

func TestStore_RemoveAndReAddRestartsWorker(t *testing.T) {
	bus := event.NewBus()
	s := New[int](setReducer, nil)
	s.Attach(bus, "set", "del")

	started := make(chan string, 4)
	sup, err := supervisor.New(supervisor.Config[int]{
		Kind: "test",
		Bus:  bus,
		Worker: func(_ supervisor.Bus, v *supervisor.View[int]) (supervisor.Task, error) {
			if v.Key() == "c" {
				started <- v.Key()
			}
			return func(ctx context.Context, _ supervisor.Emit) error { return nil }, nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, s.Watch(ctx)) }()
	defer func() {
		cancel()
		<-done
	}()

	bus.Publish(event.New("set", "c", 1))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not start")
	}

	// Remove and re-add back to back while the supervisor has a backlog.
	for i := 0; i < 200; i++ {
		bus.Publish(event.New("set", "other", i+1))
	}
	bus.Publish(event.New("del", "c", nil))
	bus.Publish(event.New("set", "c", 1))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("re-added key did not get a new worker")
	}
	require.Eventually(t, func() bool {
		st, ok := sup.Lookup("c")
		return ok && st.Incarnation == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStore_WatchClosesOnCancel(t *testing.T) {
	s := New[int](setReducer, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Watch(ctx)
	<-ch
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	s.Dispatch(event.New("set", "a", 1))
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "state.json")

	s := New[int](setReducer, supervisor.Snapshot[int]{"a": 1, "b": 2})
	require.NoError(t, s.SaveFile(p))

	got, err := LoadFile[int](p)
	require.NoError(t, err)
	assert.Equal(t, supervisor.Snapshot[int]{"a": 1, "b": 2}, got)
}

func TestLoadFile_MissingIsEmpty(t *testing.T) {
	got, err := LoadFile[int](filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = LoadFile[int]("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
