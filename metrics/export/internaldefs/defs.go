package internaldefs

import (
	"github.com/MrEthical07/authpipe"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   authpipe.MetricID
	Name string
	Help string
}

// HistogramDef names one client histogram.
type HistogramDef struct {
	ID   authpipe.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authpipe.MetricRequestTotal, Name: "authpipe_requests_total", Help: "Requests sent through Execute."},
	{ID: authpipe.MetricRequestUnauthorized, Name: "authpipe_requests_unauthorized_total", Help: "Requests answered 401 on the first attempt."},
	{ID: authpipe.MetricRequestRetried, Name: "authpipe_requests_retried_total", Help: "Requests re-sent after a successful refresh."},
	{ID: authpipe.MetricRequestCancelled, Name: "authpipe_requests_cancelled_total", Help: "Requests abandoned because the caller's context ended."},
	{ID: authpipe.MetricRequestTransportError, Name: "authpipe_requests_transport_error_total", Help: "Requests that failed before a response arrived."},
	{ID: authpipe.MetricRefreshLeader, Name: "authpipe_refresh_started_total", Help: "Refresh flights started."},
	{ID: authpipe.MetricRefreshJoined, Name: "authpipe_refresh_joined_total", Help: "Callers that joined a refresh already in flight."},
	{ID: authpipe.MetricRefreshSuccess, Name: "authpipe_refresh_success_total", Help: "Refresh flights that produced new credentials."},
	{ID: authpipe.MetricRefreshDenied, Name: "authpipe_refresh_denied_total", Help: "Refresh flights rejected by the server."},
	{ID: authpipe.MetricRefreshTransportFailure, Name: "authpipe_refresh_transport_failure_total", Help: "Refresh flights that could not reach the server."},
	{ID: authpipe.MetricRefreshThrottled, Name: "authpipe_refresh_throttled_total", Help: "Refresh flights refused by the local rate limit."},
	{ID: authpipe.MetricSessionEnded, Name: "authpipe_session_ended_total", Help: "Sessions ended because credentials could not be refreshed."},
	{ID: authpipe.MetricLoginSuccess, Name: "authpipe_login_success_total", Help: "Successful logins."},
	{ID: authpipe.MetricLoginFailure, Name: "authpipe_login_failure_total", Help: "Failed logins."},
	{ID: authpipe.MetricLogout, Name: "authpipe_logout_total", Help: "Logouts."},
	{ID: authpipe.MetricLogoutNotifyFailure, Name: "authpipe_logout_notify_failure_total", Help: "Logout notifications the server did not accept."},
	{ID: authpipe.MetricStorePersistFailure, Name: "authpipe_store_persist_failure_total", Help: "Credential writes the backend failed to persist."},
}

var HistogramDefs = []HistogramDef{
	{ID: authpipe.MetricRequestLatency, Name: "authpipe_request_duration_seconds", Help: "Execute latency including refresh and retry."},
}

// HistogramBounds are the bucket upper bounds, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authpipe_audit_dropped_total"

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
