// Package prometheus exposes goSession lifecycle counters through
// client_golang.
//
// [PrometheusExporter] is a prometheus.Collector: register it on your own
// registry, or mount [PrometheusExporter.Handler] which serves it from a
// private one. Counter names are prefixed gosession_*_total; the single
// histogram is gosession_flush_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
