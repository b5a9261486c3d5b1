package internaldefs

import (
	"strconv"

	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one lifecycle counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one lifecycle histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions created under a freshly minted id."},
	{ID: goSession.MetricCookieValid, Name: "gosession_cookie_valid_total", Help: "Requests carrying a verified identity cookie."},
	{ID: goSession.MetricCookieMissing, Name: "gosession_cookie_missing_total", Help: "Requests without an identity cookie."},
	{ID: goSession.MetricCookieTampered, Name: "gosession_cookie_tampered_total", Help: "Identity cookies that failed verification."},
	{ID: goSession.MetricCookieExpired, Name: "gosession_cookie_expired_total", Help: "Signed identity cookies past their expiry."},
	{ID: goSession.MetricFullLoad, Name: "gosession_full_load_total", Help: "Whole-record reads (HGETALL)."},
	{ID: goSession.MetricFieldFetch, Name: "gosession_field_fetch_total", Help: "Single-field reads (HGET)."},
	{ID: goSession.MetricFieldMiss, Name: "gosession_field_miss_total", Help: "Single-field reads that found nothing."},
	{ID: goSession.MetricDecodeFailure, Name: "gosession_decode_failure_total", Help: "Stored fields that could not be decoded."},
	{ID: goSession.MetricBackendError, Name: "gosession_backend_error_total", Help: "Reads that failed against the store."},
	{ID: goSession.MetricFlushSuccess, Name: "gosession_flush_success_total", Help: "Pipelines submitted at request completion."},
	{ID: goSession.MetricFlushFailure, Name: "gosession_flush_failure_total", Help: "Pipelines rejected by the store."},
	{ID: goSession.MetricFlushClean, Name: "gosession_flush_clean_total", Help: "Request completions with nothing to submit."},
	{ID: goSession.MetricFlushSkipped, Name: "gosession_flush_skipped_total", Help: "Pipelines dropped because the request was cancelled."},
	{ID: goSession.MetricSessionCleared, Name: "gosession_session_cleared_total", Help: "Session records deleted on request."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricFlushLatency, Name: "gosession_flush_latency_seconds", Help: "Flush pipeline latency."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Dropped lifecycle events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels renders the bucket bounds as "le" label values, ending with "+Inf".
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramUpperBounds)+1)
	for _, b := range HistogramUpperBounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
