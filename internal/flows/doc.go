// Package flows contains pure-function orchestrators for every client
// operation.
//
// Each flow function (RunExecute, RunLogin, RunRefreshCall, RunLogoutNotify)
// accepts a typed dependency struct and returns a result value. The root
// Client builds the dependency structs once and maps results onto its public
// errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flows coordinate the HTTP transport, the token store and the refresh
// coordinator through the function fields of their deps. They do NOT own
// any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authpipe (to avoid import cycles).
//   - Log or return token values.
package flows
