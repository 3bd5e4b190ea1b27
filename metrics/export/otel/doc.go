// Package otel bridges engine metrics to an OpenTelemetry meter.
//
// [New] registers one observable counter per engine counter and a set of
// cumulative bucket gauges for the verification latency histogram. The
// caller owns the MeterProvider.
package otel
