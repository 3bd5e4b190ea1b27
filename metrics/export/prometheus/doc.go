// Package prometheus exposes engine metrics through client_golang.
//
// [Collector] implements prometheus.Collector over an engine snapshot.
// Counters are named gosession_*_total and the verification latency
// histogram is gosession_validate_latency_seconds. Nothing is registered
// globally; [Handler] serves a private registry.
package prometheus
