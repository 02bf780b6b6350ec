package supervisor

import (
	"context"

	"keyvisor/internal/event"
)

// Event types emitted by the default Notifier constructors.
const (
	TypeEntityAdded   = "entity.added"
	TypeEntityRemoved = "entity.removed"
)

// Membership is the payload of the default notifications.
type Membership struct {
	Kind  string `json:"kind"`
	State any    `json:"state,omitempty"`
}

// Notifier turns snapshot membership changes into events instead of running
// workers. Nil constructors fall back to entity.added / entity.removed.
type Notifier[S comparable] struct {
	Kind    string
	Added   func(key string, state S) event.Event
	Removed func(key string) event.Event

	differ Differ[S]
}

// Next diffs snap against the previous snapshot and returns the resulting
// notifications: removals first, then additions, each sorted by key.
func (n *Notifier[S]) Next(snap Snapshot[S]) []event.Event {
	delta := n.differ.Next(snap)
	out := make([]event.Event, 0, len(delta.Removed)+len(delta.Added))
	for _, key := range delta.Removed {
		out = append(out, n.removed(key))
	}
	for _, key := range delta.AddedKeys() {
		out = append(out, n.added(key, delta.Added[key]))
	}
	return out
}

// Run feeds snapshots through Next and hands every notification to publish
// until ctx is done or snapshots is closed.
func (n *Notifier[S]) Run(ctx context.Context, snapshots <-chan Snapshot[S], publish func(event.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			for _, e := range n.Next(snap) {
				if e != nil {
					publish(e)
				}
			}
		}
	}
}

func (n *Notifier[S]) added(key string, s S) event.Event {
	if n.Added != nil {
		return n.Added(key, s)
	}
	return event.New(TypeEntityAdded, key, Membership{Kind: n.Kind, State: s})
}

func (n *Notifier[S]) removed(key string) event.Event {
	if n.Removed != nil {
		return n.Removed(key)
	}
	return event.New(TypeEntityRemoved, key, Membership{Kind: n.Kind})
}
