// Package bridge runs the service: it owns the peripherals, the transport link,
// and the dispatcher.
//
// Ownership boundary:
//   - A reader goroutine opens the link, decodes request frames, and submits
//     them to the dispatcher.
//   - The control goroutine (Run) steps the dispatcher once per tick.
//   - The emitter encodes each finished response and writes it to the current
//     link. Responses to local (boot) requests are only logged.
//
// Peripherals live as long as Run and are closed when it returns.
package bridge
