// Package transport adapts byte streams to the frame codec.
//
// Ownership boundary:
//   - Transport exposes read-exact, write, and discard over one open link.
//   - Stream implements Transport over any deadline-capable connection; serial
//     ports and accepted TCP connections both become Streams.
//   - Connect reopens a link with exponential backoff.
//
// Frames are not buffered across calls. Once WaitFrame reports the first byte
// of a frame, every remaining ReadExact must be satisfied within the frame
// timeout or the frame fails as truncated.
package transport
