// Package internal holds packages private to authpipe.
//
// # Sub-packages
//
//   - audit: asynchronous event dispatch with pluggable sinks.
//   - flows: the login, refresh, logout and execute orchestrations, written
//     as functions over injected dependencies.
package internal
