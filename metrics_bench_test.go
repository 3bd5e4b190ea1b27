package goSession

import (
	"sync/atomic"
	"testing"
	"time"
)

func benchInc(b *testing.B, enabled bool) {
	m := NewMetrics(MetricsConfig{Enabled: enabled})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricRefreshSuccess)
		}
	})
}

func BenchmarkMetricsIncParallel(b *testing.B)         { benchInc(b, true) }
func BenchmarkMetricsIncDisabledParallel(b *testing.B) { benchInc(b, false) }

func BenchmarkMetricsObserveValidateLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		d := 3 * time.Millisecond
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}

// gateMetricIDs are the counters every request through the gate may touch.
var gateMetricIDs = [...]MetricID{
	MetricRateLimitHit,
	MetricIPBlocked,
	MetricAccessRejected,
	MetricCSRFRejected,
	MetricRefreshSuccess,
	MetricStoreUnavailable,
}

// unpaddedCounters is the layout Metrics avoids: adjacent counters share a
// cache line.
type unpaddedCounters struct {
	counters [metricIDCount]uint64
}

func (m *unpaddedCounters) Inc(id MetricID) { atomic.AddUint64(&m.counters[id], 1) }

func benchGateMix(b *testing.B, inc func(MetricID)) {
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			inc(gateMetricIDs[i%len(gateMetricIDs)])
			i++
		}
	})
}

func BenchmarkMetricsGateMixPadded(b *testing.B) {
	benchGateMix(b, NewMetrics(MetricsConfig{Enabled: true}).Inc)
}

func BenchmarkMetricsGateMixUnpadded(b *testing.B) {
	benchGateMix(b, (&unpaddedCounters{}).Inc)
}
