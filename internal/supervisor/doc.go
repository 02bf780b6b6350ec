// Package supervisor runs one worker per key of a continuously updated keyed
// collection. It is structured into small files by concern:
//
//   - types.go: Snapshot, Worker/Task/Emit plug-in contract, worker states.
//   - differ.go: pairwise snapshot diffing (Diff, Differ).
//   - view.go: View, the per-key deduplicated live state projection.
//   - lifecycle.go: incarnations; starting, routing and cancelling workers.
//   - supervisor.go: Supervisor, the coordination loop owning the active set.
//   - notify.go: Notifier, emitting added/removed events instead of workers.
//   - metrics.go, errors.go: Prometheus collectors and typed errors.
//
// A Supervisor consumes a stream of snapshots on a single coordination
// goroutine. Every mutation of the set of running workers happens on that
// goroutine, one snapshot at a time: removals are cancelled first, then
// added keys are started, then surviving keys receive their new state.
// Worker output is merged into one stream (Events) that callers typically
// forward onto the shared bus.
//
// A worker failure, whether returned as an error or raised as a panic, is
// contained to its key. The supervisor logs it, counts it and, when
// Config.OnFailure is set, emits a failure event on the merged stream; sibling
// workers keep running.
package supervisor
