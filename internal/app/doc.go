// Package app is the sessiond demo server: each visitor keeps a list of
// entries in their session, posted from a form and cleared on request.
package app
