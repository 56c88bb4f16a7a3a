// Package audit relays session lifecycle events to caller-supplied sinks.
//
// # Components
//
//   - [Event]: one lifecycle record (login, refresh, session end, logout).
//   - [Sink]: consumer interface with channel, JSON-lines, zap and no-op
//     implementations.
//   - [Dispatcher]: buffered asynchronous relay that either drops or blocks
//     when its buffer is full.
//
// # What this package must NOT do
//
//   - Decide which events are emitted; the client does that.
//   - Import authpipe or any sibling internal package.
//   - Carry token values in events.
package audit
