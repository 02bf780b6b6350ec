package supervisor

import (
	"context"
	"time"

	"keyvisor/internal/event"
)

// Snapshot is the value of a keyed collection at one instant.
// Snapshots are treated as immutable once handed to a Supervisor.
type Snapshot[S comparable] map[string]S

// Keys returns the snapshot keys in unspecified order.
func (s Snapshot[S]) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a shallow copy of s.
func (s Snapshot[S]) Clone() Snapshot[S] {
	out := make(Snapshot[S], len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Bus is the part of the shared event bus a worker may use.
type Bus interface {
	Publish(event.Event)
	Listen(ctx context.Context, types ...string) <-chan event.Event
}

// Emit delivers an event to the supervisor's merged output. It returns false
// once the incarnation has been cancelled; the task should then return.
type Emit func(event.Event) bool

// Task is the body of one worker incarnation. It runs on its own goroutine
// until it returns or ctx is cancelled by the key's removal. Returning nil
// completes the incarnation; returning an error fails it.
type Task func(ctx context.Context, emit Emit) error

// Worker builds the task for a newly added key. It must not block: any
// waiting belongs in the returned Task. An error fails the key without
// affecting the other keys added in the same snapshot.
type Worker[S comparable] func(bus Bus, view *View[S]) (Task, error)

// WorkerState is the lifecycle state of one incarnation.
type WorkerState int

const (
	// StateRunning indicates the task is executing.
	StateRunning WorkerState = iota
	// StateCompleted indicates the task returned nil on its own.
	StateCompleted
	// StateCancelled indicates the key was removed from the collection.
	StateCancelled
	// StateFailed indicates construction or the task failed.
	StateFailed
)

// String returns a human-readable string for the state.
func (s WorkerState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s WorkerState) Terminal() bool { return s != StateRunning }

// Status is a read-only view of one key's current incarnation.
type Status struct {
	Key         string
	Incarnation uint64
	State       WorkerState
	Started     time.Time
	Ended       time.Time
	Err         string
}
