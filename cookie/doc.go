// Package cookie carries the session id between server and browser.
//
// [Signer] is the default [Codec]: the id travels as the sid claim of an
// HS256 JWT, so a value the server did not sign (or signed with another
// secret) decodes to [ErrCookieInvalid]. [Set], [Clear] and [Read] handle the
// http.Cookie plumbing with safe defaults.
//
// # What this package must NOT do
//
//   - Touch the session store.
//   - Mint session ids.
package cookie
