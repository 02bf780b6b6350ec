// Package event provides the shared pub-sub bus that connects the HTTP layer,
// the state stores, the supervisors and their workers.
//
// Every message on the bus implements [Event]. Domain packages build their
// events with [New], which returns a [Message] carrying a "category.action"
// type, the entity key it concerns and an optional payload.
//
// # Subscribing
//
// Two subscription styles are supported:
//
//   - [Bus.Subscribe] / [Bus.SubscribeAll] register a synchronous [Handler].
//     Handlers run on the publisher's goroutine, must not block, and are
//     protected against panics. State reducers use this style so that a
//     snapshot reflects an event as soon as Publish returns.
//   - [Bus.Listen] returns a channel fed through an unbounded queue. A slow
//     listener never blocks publishers and never loses events; the channel is
//     closed when the listener's context ends. Workers and the SSE endpoint use
//     this style.
//
// All subscribers see every event they match. No event is consumed
// exclusively.
//
// # Event type naming
//
// Event types follow "category.action":
//   - counter.add, counter.remove, counter.increment
//   - upload.request, upload.cancel, upload.started, upload.progress,
//     upload.completed, upload.failed
//   - entity.added, entity.removed, worker.failed
package event
