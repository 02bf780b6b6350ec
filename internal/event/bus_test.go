package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "listener channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_SubscribeDispatchesByType(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe("counter.add", func(e Event) { got = append(got, "specific:"+e.EventKey()) })
	b.SubscribeAll(func(e Event) { got = append(got, "all:"+e.EventType()) })

	b.Publish(New("counter.add", "a", nil))
	b.Publish(New("counter.remove", "a", nil))

	assert.Equal(t, []string{"specific:a", "all:counter.add", "all:counter.remove"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	id := b.Subscribe("x", func(Event) { calls++ })
	require.Equal(t, 1, b.SubscriptionCount())
	require.True(t, b.Unsubscribe(id))
	require.False(t, b.Unsubscribe(id))
	b.Publish(New("x", "", nil))
	assert.Zero(t, calls)
	assert.Zero(t, b.SubscriptionCount())
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := NewBus()
	reached := false
	b.Subscribe("x", func(Event) { panic("boom") })
	b.Subscribe("x", func(Event) { reached = true })
	b.Publish(New("x", "", nil))
	assert.True(t, reached)
}

func TestBus_ListenFiltersAndPreservesOrder(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Listen(ctx, "counter.increment")
	for i := 0; i < 100; i++ {
		b.Publish(New("counter.increment", "a", i))
		b.Publish(New("counter.add", "b", nil))
	}
	for i := 0; i < 100; i++ {
		e := recv(t, ch)
		n, ok := Payload[int](e)
		require.True(t, ok)
		require.Equal(t, i, n)
	}
}

func TestBus_ListenClosesOnCancel(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Listen(ctx)
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not closed")
	}
	require.Eventually(t, func() bool { return b.SubscriptionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBus_ConcurrentPublishersReachEveryListener(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l1 := b.Listen(ctx)
	l2 := b.Listen(ctx)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				b.Publish(New("tick", "", nil))
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 100; i++ {
		recv(t, l1)
		recv(t, l2)
	}
}

func TestPayload(t *testing.T) {
	e := New("x", "k", "hello")
	s, ok := Payload[string](e)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
	_, ok = Payload[int](e)
	assert.False(t, ok)
	s, ok = Payload[string](&e)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
}
