package internaldefs

import (
	"github.com/MrEthical07/authsession"
)

// CounterDef binds a Manager counter to its exported name.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// HistogramDef binds a Manager histogram to its exported name.
type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authsession.MetricLoginSuccess, Name: "authsession_login_success_total", Help: "Logins that produced a session."},
	{ID: authsession.MetricLoginFailure, Name: "authsession_login_failure_total", Help: "Logins rejected by the backend or failed in transport."},
	{ID: authsession.MetricLoginValidationFailure, Name: "authsession_login_validation_failure_total", Help: "Logins rejected locally before any backend call."},
	{ID: authsession.MetricMFARequired, Name: "authsession_mfa_required_total", Help: "Logins that required a second factor."},
	{ID: authsession.MetricMFASuccess, Name: "authsession_mfa_success_total", Help: "Successful TOTP verifications."},
	{ID: authsession.MetricMFAFailure, Name: "authsession_mfa_failure_total", Help: "Failed TOTP verifications."},
	{ID: authsession.MetricBackupCodeUsed, Name: "authsession_backup_code_used_total", Help: "Successful backup-code verifications."},
	{ID: authsession.MetricBackupCodeFailed, Name: "authsession_backup_code_failed_total", Help: "Failed backup-code verifications."},
	{ID: authsession.MetricMFACancelled, Name: "authsession_mfa_cancelled_total", Help: "Abandoned second-factor challenges."},
	{ID: authsession.MetricRefreshSuccess, Name: "authsession_refresh_success_total", Help: "Refreshes whose result was applied."},
	{ID: authsession.MetricRefreshFailure, Name: "authsession_refresh_failure_total", Help: "Refreshes that ended the session."},
	{ID: authsession.MetricSessionExpired, Name: "authsession_session_expired_total", Help: "Sessions ended locally because refresh was impossible."},
	{ID: authsession.MetricRefreshCoalesced, Name: "authsession_refresh_coalesced_total", Help: "Refresh calls that shared an in-flight request."},
	{ID: authsession.MetricRefreshDiscarded, Name: "authsession_refresh_discarded_total", Help: "Refresh results dropped because the session changed."},
	{ID: authsession.MetricRefreshScheduled, Name: "authsession_refresh_scheduled_total", Help: "Refresh timer arms."},
	{ID: authsession.MetricTokenVerified, Name: "authsession_token_verified_total", Help: "Access tokens confirmed by the backend."},
	{ID: authsession.MetricTokenVerifyFailure, Name: "authsession_token_verify_failure_total", Help: "Access token checks that failed."},
	{ID: authsession.MetricSessionRestored, Name: "authsession_session_restored_total", Help: "Sessions loaded from storage."},
	{ID: authsession.MetricSessionCorrupt, Name: "authsession_session_corrupt_total", Help: "Stored session records discarded as unreadable."},
	{ID: authsession.MetricLogout, Name: "authsession_logout_total", Help: "Single-session logouts."},
	{ID: authsession.MetricLogoutAll, Name: "authsession_logout_all_total", Help: "Logouts revoking every session of the user."},
	{ID: authsession.MetricLogoutRevokeFailed, Name: "authsession_logout_revoke_failed_total", Help: "Logouts whose server-side revoke failed."},
	{ID: authsession.MetricPersistFailure, Name: "authsession_persist_failure_total", Help: "Failed storage writes or removals."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricBackendLatency, Name: "authsession_backend_latency_seconds", Help: "Backend call latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, truncating or zero
// filling as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
