package counter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"keyvisor/internal/supervisor"
)

// DefaultInterval is used when neither the counter nor WorkerConfig set one.
const DefaultInterval = time.Second

// WorkerConfig tunes the counter worker.
type WorkerConfig struct {
	// Interval between increments when the counter does not set its own.
	Interval time.Duration
	Logger   zerolog.Logger
}

// NewWorker returns a worker that emits an increment for its counter every
// interval and completes once the counter reaches its limit.
func NewWorker(cfg WorkerConfig) supervisor.Worker[State] {
	def := cfg.Interval
	if def <= 0 {
		def = DefaultInterval
	}
	return func(_ supervisor.Bus, view *supervisor.View[State]) (supervisor.Task, error) {
		id := view.Key()
		interval := view.Current().Interval(def)
		log := cfg.Logger.With().Str("counter", id).Logger()

		return func(ctx context.Context, emit supervisor.Emit) error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			changes := view.Changes(ctx)

			log.Debug().Dur("interval", interval).Msg("counter ticking")
			for {
				select {
				case <-ctx.Done():
					return nil
				case st, ok := <-changes:
					if !ok {
						return nil
					}
					if st.Done() {
						log.Debug().Int("count", st.Count).Msg("counter reached limit")
						return nil
					}
				case <-ticker.C:
					if !emit(Increment(id)) {
						return nil
					}
				}
			}
		}, nil
	}
}
