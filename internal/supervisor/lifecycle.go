package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"keyvisor/internal/event"
)

// incarnation is one add-to-remove lifespan of a worker for a key.
type incarnation[S comparable] struct {
	key     string
	seq     uint64
	view    *View[S]
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu orders emits against cancellation: once cancelled is set no emit
	// reaches the merged output.
	mu        sync.Mutex
	cancelled bool
}

// emit is the Emit handed to the task.
func (inc *incarnation[S]) emit(s *Supervisor[S]) Emit {
	return func(e event.Event) bool {
		if e == nil {
			return true
		}
		inc.mu.Lock()
		defer inc.mu.Unlock()
		if inc.cancelled {
			return false
		}
		if !s.out.Push(e) {
			return false
		}
		workerEventsTotal.WithLabelValues(s.kind).Inc()
		return true
	}
}

// stop closes the emit gate, signals removal to the view and cancels the
// task's context. It does not wait for the task to return.
func (inc *incarnation[S]) stop() {
	inc.mu.Lock()
	inc.cancelled = true
	inc.mu.Unlock()
	inc.view.remove()
	if inc.cancel != nil {
		inc.cancel()
	}
}

// isCancelled reports whether stop has been called.
func (inc *incarnation[S]) isCancelled() bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return inc.cancelled
}

// start constructs and launches a worker for key seeded with initial. A
// construction failure is recorded against the key and returned; the
// returned incarnation is still tracked so that the key is not retried until
// it is removed and re-added.
func (s *Supervisor[S]) start(ctx context.Context, key string, initial S) (*incarnation[S], error) {
	s.seq[key]++
	inc := &incarnation[S]{
		key:     key,
		seq:     s.seq[key],
		view:    newView(key, initial),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	inc.ctx, inc.cancel = context.WithCancel(ctx)

	log := s.log.With().Str("key", key).Uint64("incarnation", inc.seq).Logger()

	var (
		task Task
		err  error
	)
	var pc panics.Catcher
	pc.Try(func() { task, err = s.worker(s.bus, inc.view) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err == nil && task == nil {
		err = errors.New("worker returned no task")
	}

	s.setStatus(Status{Key: key, Incarnation: inc.seq, State: StateRunning, Started: inc.started})
	workersStartedTotal.WithLabelValues(s.kind).Inc()

	if err != nil {
		err = fmt.Errorf("construct worker %q: %w", key, err)
		inc.cancel()
		close(inc.done)
		s.finish(inc, StateFailed, err)
		log.Error().Err(err).Msg("worker construction failed")
		return inc, err
	}

	workersActive.WithLabelValues(s.kind).Inc()
	log.Debug().Msg("worker started")

	s.wg.Go(func() {
		defer close(inc.done)
		defer workersActive.WithLabelValues(s.kind).Dec()

		var runErr error
		var pc panics.Catcher
		pc.Try(func() { runErr = task(inc.ctx, inc.emit(s)) })
		if r := pc.Recovered(); r != nil {
			runErr = r.AsError()
		}

		switch {
		case inc.isCancelled():
			s.finish(inc, StateCancelled, nil)
			log.Debug().Msg("worker cancelled")
		case runErr != nil:
			s.finish(inc, StateFailed, runErr)
			log.Error().Err(runErr).Msg("worker failed")
		default:
			s.finish(inc, StateCompleted, nil)
			log.Debug().Msg("worker completed")
		}
	})
	return inc, nil
}

// finish records the terminal state of inc unless a newer incarnation of the
// same key has replaced it.
func (s *Supervisor[S]) finish(inc *incarnation[S], state WorkerState, err error) {
	workersFinishedTotal.WithLabelValues(s.kind, state.String()).Inc()

	s.mu.Lock()
	st, ok := s.status[inc.key]
	if ok && st.Incarnation == inc.seq {
		st.State = state
		st.Ended = time.Now()
		if err != nil {
			st.Err = err.Error()
		}
		s.status[inc.key] = st
	}
	s.mu.Unlock()

	// Goes through the emit gate so a failure racing removal cannot reach a
	// later incarnation of the key.
	if state == StateFailed && s.onFailure != nil {
		if e := s.onFailure(inc.key, err); e != nil {
			inc.emit(s)(e)
		}
	}
}

// cancelKey stops the running incarnation of key, if any, and forgets it.
func (s *Supervisor[S]) cancelKey(key string) {
	inc, ok := s.active[key]
	if !ok {
		return
	}
	delete(s.active, key)
	inc.stop()

	s.mu.Lock()
	delete(s.status, key)
	s.mu.Unlock()
}
