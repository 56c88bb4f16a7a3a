// Package otel publishes client metrics through OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per client counter and
// one Int64ObservableGauge per latency bucket. A single callback reads the
// snapshot on every collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate client state.
package otel
