// Package middleware holds the HTTP adapters around the authpipe client.
//
// # Outbound round-trippers
//
//   - [RequestID] stamps X-Request-ID on every attempt.
//   - [Device] stamps X-Device.
//   - [Chain] composes them over a base transport.
//
// # Bearer guard
//
// [RequireBearer] is the server-side counterpart used by fake backends: it
// reads the Authorization header, validates the token through a callback,
// and answers 401 when either step fails.
//
// # What this package must NOT do
//
//   - Import authpipe (the client imports this package).
//   - Attach or refresh credentials; the request pipeline owns that.
package middleware
