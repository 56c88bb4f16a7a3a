// Package session derives the authentication status of a client from its
// stored credentials and broadcasts changes to subscribers.
//
// # Status derivation
//
// [State.CurrentStatus] reads the current access token and decodes it. An
// empty, malformed or expired token means [Unauthenticated]; nothing is cached
// so the status is always consistent with the store.
//
// # Change notification
//
// The token store calls [State.NotifyChanged] after every write. Each
// subscriber runs once, synchronously, in the writing goroutine and in
// subscription order. Subscribers may read the status or (un)subscribe, but
// must not write credentials: the store's writer lock is held while they run.
//
// # What this package must NOT do
//
//   - Import authpipe or refresh (no upward imports).
//   - Write credentials.
//   - Batch or defer notifications.
package session
