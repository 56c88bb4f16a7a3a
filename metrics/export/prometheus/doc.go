// Package prometheus renders client metrics in the Prometheus text format.
//
// [NewExporter] reads an [authpipe.Client] and serves every counter as
// authpipe_*_total plus the authpipe_request_duration_seconds histogram.
//
// # What this package must NOT do
//
//   - Register with a global Prometheus registry; callers mount the Handler.
//   - Mutate client state.
package prometheus
