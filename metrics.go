package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID names one lifecycle counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts freshly minted session ids.
	MetricSessionCreated MetricID = iota
	// MetricCookieValid counts requests that carried a verified identity cookie.
	MetricCookieValid
	// MetricCookieMissing counts requests without an identity cookie.
	MetricCookieMissing
	// MetricCookieTampered counts identity cookies that failed verification.
	MetricCookieTampered
	// MetricCookieExpired counts correctly signed identity cookies past their expiry.
	MetricCookieExpired
	// MetricFullLoad counts whole-record reads.
	MetricFullLoad
	// MetricFieldFetch counts single-field reads.
	MetricFieldFetch
	// MetricFieldMiss counts single-field reads that found nothing.
	MetricFieldMiss
	// MetricDecodeFailure counts stored fields that could not be decoded.
	MetricDecodeFailure
	// MetricBackendError counts failed reads against the store.
	MetricBackendError
	// MetricFlushSuccess counts pipelines submitted at request completion.
	MetricFlushSuccess
	// MetricFlushFailure counts pipelines the store rejected.
	MetricFlushFailure
	// MetricFlushClean counts request completions with nothing to submit.
	MetricFlushClean
	// MetricFlushSkipped counts pipelines dropped because the request was cancelled.
	MetricFlushSkipped
	// MetricSessionCleared counts records deleted through ClearAndExpireCookie.
	MetricSessionCleared
	// MetricFlushLatency is the flush latency histogram.
	MetricFlushLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free lifecycle counters. A nil or disabled Metrics
// ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the flush histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricFlushLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricFlushLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricFlushLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricFlushLatency].buckets[i])
		}
		s.Histograms[MetricFlushLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
