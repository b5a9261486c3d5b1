// Package otel publishes goSession lifecycle counters through an
// OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter. The
// flush latency histogram becomes a "_bucket" gauge with one point per "le"
// attribute plus a "_count" gauge. One callback feeds them all from a single
// [goSession.Engine.MetricsSnapshot].
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
