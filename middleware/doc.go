// Package middleware adapts goSession.Engine to net/http.
//
//   - [Sessions] runs the per-request lifecycle: resolve, touch, flush.
//   - [Handle] is the same, handing the session straight to the handler.
//   - [RequestLogging] writes one structured log line per request.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Cookie signing,
// store access and flush policy all stay in the Engine.
//
// # What this package must NOT do
//
//   - Talk to Redis directly.
//   - Change the response because a flush failed.
package middleware
