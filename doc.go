// Package goSession provides server-side HTTP sessions backed by Redis hashes.
//
// A browser carries only a signed session id in its identity cookie. Session
// data lives in one hash per session, read lazily (single fields first, the
// whole record only when enumerated) and written back as one pipeline at the
// end of the request. Every request refreshes the record's expiry, so idle
// sessions age out on their own.
//
// # Architecture boundaries
//
// goSession is the request lifecycle surface. It exposes [Engine], [Builder],
// [Config], and the lifecycle event and metrics types. The per-session state
// machine and its store contract live in the session package; identity
// cookie signing lives in the cookie package; net/http glue lives in
// middleware.
//
// # What this package must NOT do
//
//   - Fail a response because a flush failed. Flush errors are logged,
//     counted, and returned for the caller to ignore.
//   - Touch the store during Resolve. The first read happens on first use.
//   - Share a Session between requests.
//
// # Performance contract
//
// A request that never reads its session costs one pipelined round-trip at
// completion (HSET of the access metadata plus EXPIRE). Reading a known key
// costs one HGET; enumerating costs one HGETALL, after which every read is
// served locally.
package goSession
