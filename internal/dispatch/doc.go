// Package dispatch owns the request queue and the single in-flight slot.
//
// Ownership boundary:
//   - Queue is an unbounded FIFO of accepted requests.
//   - Dispatcher moves the queue head into the slot, polls the slot's
//     Operation once per Step, and hands finished responses to an Emitter.
//   - Resolving a request into an Operation belongs to the catalog; performing
//     the operation belongs to the peripherals.
//
// At most one operation is ever in flight. Responses leave in the order their
// requests were accepted.
package dispatch
