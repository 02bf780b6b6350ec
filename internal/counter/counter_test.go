package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

func TestReduce_AddRemoveIncrement(t *testing.T) {
	s := supervisor.Snapshot[State]{}
	s = Reduce(s, Add("foo", 0, 0))
	s = Reduce(s, Add("bar", 2, 10*time.Millisecond))
	assert.Equal(t, State{ID: "foo"}, s["foo"])
	assert.Equal(t, State{ID: "bar", Limit: 2, IntervalMS: 10}, s["bar"])

	s = Reduce(s, Increment("foo"))
	s = Reduce(s, Increment("foo"))
	assert.Equal(t, 2, s["foo"].Count)
	assert.Equal(t, 0, s["bar"].Count)

	s = Reduce(s, Remove("foo"))
	_, ok := s["foo"]
	assert.False(t, ok)
	assert.Len(t, s, 1)
}

func TestReduce_DoesNotMutatePrevious(t *testing.T) {
	prev := supervisor.Snapshot[State]{"a": {ID: "a"}}
	next := Reduce(prev, Increment("a"))
	assert.Equal(t, 0, prev["a"].Count)
	assert.Equal(t, 1, next["a"].Count)
}

func TestReduce_NoOpsReturnSameSnapshot(t *testing.T) {
	prev := supervisor.Snapshot[State]{"a": {ID: "a", Count: 3, Limit: 3}}
	cases := []event.Event{
		Add("a", 0, 0),
		Remove("zzz"),
		Increment("zzz"),
		Increment("a"), // at limit
		event.New("other", "a", nil),
		Increment(""),
	}
	for _, e := range cases {
		next := Reduce(prev, e)
		assert.Equal(t, prev, next, e.EventType())
	}
}

func TestState_IntervalAndDone(t *testing.T) {
	assert.Equal(t, time.Second, State{}.Interval(time.Second))
	assert.Equal(t, 250*time.Millisecond, State{IntervalMS: 250}.Interval(time.Second))
	assert.False(t, State{Count: 5}.Done())
	assert.True(t, State{Count: 2, Limit: 2}.Done())
}
