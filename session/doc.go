// Package session implements the server-side session mapping: a lazily loaded,
// write-buffered, TTL-refreshing view of one Redis hash record.
//
// # Consistency model
//
// A [Session] serves reads from its local cache, falls back to single-field
// fetches while the record has not been loaded, and only reads the whole hash
// when a caller enumerates ([Session.Keys], [Session.Len], [Session.Items],
// [Session.View], [Session.Copy]). Writes are visible locally at once and are
// queued until [Session.Save], which submits them as one ordered, non-atomic
// pipeline. Deletes are the exception: they are applied immediately so a later
// single-field fetch cannot resurrect the old value.
//
// Concurrent requests on the same id share nothing in-process; the store sees
// last writer wins per field.
//
// # Value encoding
//
// Field values are stored in a compact tagged binary format (see [Encode]).
// Only plain data round-trips: nil, booleans, numbers, strings, byte strings,
// sequences and string-keyed mappings. Integers always come back as int64 or
// uint64, floats as float64.
//
// # What this package must NOT do
//
//   - Know about HTTP, cookies, or request lifecycles (the root package owns those).
//   - Log; failures are returned to the caller.
//   - Share a Session across goroutines.
package session
