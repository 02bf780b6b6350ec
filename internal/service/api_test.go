package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyvisor/internal/counter"
	"keyvisor/pkg/types"
)

func TestAPI_Counters(t *testing.T) {
	svc, err := New(Config{CounterInterval: time.Hour})
	require.NoError(t, err)
	api := NewAPI(svc)
	start(t, svc)

	_, err = api.AddCounter(types.AddCounterRequest{ID: "x", IntervalMS: -1})
	assert.True(t, IsInvalid(err))

	c, err := api.AddCounter(types.AddCounterRequest{ID: "foo", Limit: 2, IntervalMS: 250})
	require.NoError(t, err)
	assert.Equal(t, types.Counter{ID: "foo", Limit: 2, IntervalMS: 250}, c)
	assert.Equal(t, []types.Counter{c}, api.ListCounters())

	require.Eventually(t, func() bool {
		st := api.Status()
		return st.Ready && len(st.Kinds) == 2 && len(st.Kinds[0].Workers) == 1 &&
			st.Kinds[0].Workers[0].State == "running"
	}, time.Second, 5*time.Millisecond)
	w := api.Status().Kinds[0].Workers[0]
	assert.Equal(t, "foo", w.Key)
	assert.Equal(t, uint64(1), w.Incarnation)
	assert.NotZero(t, w.StartedUnixMS)

	require.NoError(t, api.RemoveCounter("foo"))
	assert.Empty(t, api.ListCounters())
	assert.True(t, IsNotFound(api.RemoveUpload("nope")))
}

func TestAPI_EventsCarryPayload(t *testing.T) {
	svc, err := New(Config{})
	require.NoError(t, err)
	api := NewAPI(svc)

	ctx, cancel := context.WithCancel(context.Background())
	events := api.Events(ctx, counter.TypeAdd)
	svc.Bus().Publish(counter.Add("foo", 3, 0))

	select {
	case e := <-events:
		assert.Equal(t, counter.TypeAdd, e.Type)
		assert.Equal(t, "foo", e.Key)
		assert.Equal(t, counter.AddPayload{Limit: 3}, e.Data)
		assert.NotZero(t, e.TimeUnixMS)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
