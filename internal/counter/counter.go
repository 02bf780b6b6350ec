// Package counter implements the periodic counter entity: its events, its
// reducer and the worker that ticks it.
package counter

import (
	"time"

	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

// Event types handled by Reduce.
const (
	TypeAdd       = "counter.add"
	TypeRemove    = "counter.remove"
	TypeIncrement = "counter.increment"
)

// Types lists every event type the counter reducer consumes.
func Types() []string { return []string{TypeAdd, TypeRemove, TypeIncrement} }

// State is the value of one counter.
type State struct {
	ID         string `json:"id"`
	Count      int    `json:"count"`
	Limit      int    `json:"limit,omitempty"`
	IntervalMS int64  `json:"interval_ms,omitempty"`
}

// Done reports whether the counter reached its limit.
func (s State) Done() bool { return s.Limit > 0 && s.Count >= s.Limit }

// Interval returns the tick interval, or def when unset.
func (s State) Interval(def time.Duration) time.Duration {
	if s.IntervalMS > 0 {
		return time.Duration(s.IntervalMS) * time.Millisecond
	}
	return def
}

// AddPayload carries the options of a new counter.
type AddPayload struct {
	Limit      int   `json:"limit,omitempty"`
	IntervalMS int64 `json:"interval_ms,omitempty"`
}

// Add requests a new counter.
func Add(id string, limit int, interval time.Duration) event.Message {
	return event.New(TypeAdd, id, AddPayload{Limit: limit, IntervalMS: interval.Milliseconds()})
}

// Remove requests removal of a counter.
func Remove(id string) event.Message { return event.New(TypeRemove, id, nil) }

// Increment bumps a counter by one.
func Increment(id string) event.Message { return event.New(TypeIncrement, id, nil) }

// Reduce folds counter events into the collection.
func Reduce(prev supervisor.Snapshot[State], e event.Event) supervisor.Snapshot[State] {
	id := e.EventKey()
	if id == "" {
		return prev
	}
	switch e.EventType() {
	case TypeAdd:
		if _, exists := prev[id]; exists {
			return prev
		}
		p, _ := event.Payload[AddPayload](e)
		next := prev.Clone()
		next[id] = State{ID: id, Limit: p.Limit, IntervalMS: p.IntervalMS}
		return next
	case TypeRemove:
		if _, exists := prev[id]; !exists {
			return prev
		}
		next := prev.Clone()
		delete(next, id)
		return next
	case TypeIncrement:
		cur, exists := prev[id]
		if !exists || cur.Done() {
			return prev
		}
		cur.Count++
		next := prev.Clone()
		next[id] = cur
		return next
	default:
		return prev
	}
}
