// Package audit delivers session lifecycle events off the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: one lifecycle record: type, session id, client IP, outcome, metadata.
//
// The lifecycle engine decides which events exist and when they fire. This
// package only buffers and delivers them.
//
// # What this package must NOT do
//
//   - Filter or suppress events.
//   - Import goSession or any sibling package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
