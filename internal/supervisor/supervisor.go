package supervisor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"keyvisor/internal/common/chanq"
	"keyvisor/internal/event"
)

// Config configures a Supervisor.
type Config[S comparable] struct {
	// Kind labels logs and metrics, e.g. "counter".
	Kind string
	// Worker builds the task for each added key. Required.
	Worker Worker[S]
	// Bus is handed to every worker. Required.
	Bus Bus
	// Logger receives lifecycle logs. The zero value discards them.
	Logger zerolog.Logger
	// OnFailure, if set, builds an event emitted on the merged output when an
	// incarnation fails. Returning nil emits nothing.
	OnFailure func(key string, err error) event.Event
}

// Supervisor runs one worker per key of the snapshots it is fed.
type Supervisor[S comparable] struct {
	kind      string
	worker    Worker[S]
	bus       Bus
	log       zerolog.Logger
	onFailure func(key string, err error) event.Event

	// Owned by the Run goroutine.
	differ Differ[S]
	active map[string]*incarnation[S]
	seq    map[string]uint64

	// Read-only copy for observers.
	mu     sync.Mutex
	status map[string]Status

	out     *chanq.Queue[event.Event]
	events  chan event.Event
	wg      conc.WaitGroup
	running atomic.Bool
}

// New constructs a Supervisor from cfg.
func New[S comparable](cfg Config[S]) (*Supervisor[S], error) {
	if cfg.Worker == nil {
		return nil, invalidConfigError{msg: "worker is required"}
	}
	if cfg.Bus == nil {
		return nil, invalidConfigError{msg: "bus is required"}
	}
	kind := cfg.Kind
	if kind == "" {
		kind = "default"
	}
	s := &Supervisor[S]{
		kind:      kind,
		worker:    cfg.Worker,
		bus:       cfg.Bus,
		log:       cfg.Logger.With().Str("component", "supervisor").Str("kind", kind).Logger(),
		onFailure: cfg.OnFailure,
		active:    make(map[string]*incarnation[S]),
		seq:       make(map[string]uint64),
		status:    make(map[string]Status),
		out:       chanq.New[event.Event](),
		events:    make(chan event.Event),
	}
	go s.out.Pump(context.Background(), s.events)
	return s, nil
}

// Kind returns the label the supervisor was configured with.
func (s *Supervisor[S]) Kind() string { return s.kind }

// Events returns the merged output of every worker. The channel is closed
// after Run returns and every worker has exited.
func (s *Supervisor[S]) Events() <-chan event.Event { return s.events }

// Run consumes snapshots until ctx is done or the channel is closed, then
// cancels every worker, waits for them to exit and closes Events. It may be
// called once.
func (s *Supervisor[S]) Run(ctx context.Context, snapshots <-chan Snapshot[S]) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer func() {
		for _, key := range sortedKeys(s.active) {
			s.cancelKey(key)
		}
		cancelWorkers()
		s.wg.Wait()
		s.out.Close()
		s.log.Debug().Msg("supervisor stopped")
	}()

	s.log.Debug().Msg("supervisor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			s.apply(workerCtx, snap)
		}
	}
}

// apply processes one snapshot transition completely: removals, then
// additions, then state updates for surviving keys.
func (s *Supervisor[S]) apply(ctx context.Context, snap Snapshot[S]) {
	delta := s.differ.Next(snap)

	for _, key := range delta.Removed {
		s.cancelKey(key)
		s.log.Debug().Str("key", key).Msg("key removed")
	}
	for _, key := range delta.AddedKeys() {
		if old, ok := s.active[key]; ok {
			// Only reachable if the differ and the active set disagree.
			old.stop()
			delete(s.active, key)
		}
		inc, _ := s.start(ctx, key, delta.Added[key])
		s.active[key] = inc
	}
	for key, inc := range s.active {
		if _, added := delta.Added[key]; added {
			continue
		}
		if v, ok := snap[key]; ok {
			inc.view.Offer(v)
		}
	}
}

// Active returns the status of every key currently in the collection,
// sorted by key.
func (s *Supervisor[S]) Active() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup returns the status of key.
func (s *Supervisor[S]) Lookup(key string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[key]
	return st, ok
}

func (s *Supervisor[S]) setStatus(st Status) {
	s.mu.Lock()
	s.status[st.Key] = st
	s.mu.Unlock()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
