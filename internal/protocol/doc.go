// Package protocol owns the controller wire contract.
//
// Ownership boundary:
// - request/response tagged unions
// - frame encode/decode (bit exact, see wire for primitives)
// - decode error taxonomy
//
// Request frame: [family:u8][payload]. Response frame: [kind:u8] then either
// an i32 error code (kind 0) or [status:u8 = 1][payload].
package protocol
