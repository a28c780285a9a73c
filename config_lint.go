package authsession

import (
	"fmt"
	"time"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	// LintInfo marks a setting worth knowing about but usually intended.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that is valid but likely to misbehave.
	LintWarn
)

// String returns the severity name.
func (s LintSeverity) String() string {
	if s == LintWarn {
		return "warn"
	}
	return "info"
}

// LintWarning is one advisory finding about a valid Config.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

// AtLeast returns the warnings at or above floor.
func (ws LintWarnings) AtLeast(floor LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= floor {
			out = append(out, w)
		}
	}
	return out
}

const minSaneRefreshInterval = time.Second

// Lint reports settings that pass Validate but are likely mistakes. It never
// fails; callers decide whether to log or reject.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.Backend.Timeout >= c.Refresh.Threshold {
		add("backend_timeout_exceeds_threshold", LintWarn,
			"backend timeout %s is not shorter than the refresh threshold %s; a slow refresh can outlive the access token",
			c.Backend.Timeout, c.Refresh.Threshold)
	}
	if c.Refresh.Threshold > c.Refresh.FallbackTokenTTL/2 {
		add("threshold_large", LintWarn,
			"refresh threshold %s is more than half the fallback token TTL %s",
			c.Refresh.Threshold, c.Refresh.FallbackTokenTTL)
	}
	if c.Refresh.MinInterval < minSaneRefreshInterval {
		add("min_interval_tiny", LintWarn,
			"refresh min interval %s lets short-lived tokens refresh in a tight loop", c.Refresh.MinInterval)
	}
	if c.Storage.Disabled {
		add("storage_disabled", LintInfo, "session persistence is disabled; sessions end with the process")
	}
	switch {
	case !c.Audit.Enabled:
		add("audit_disabled", LintInfo, "audit events are disabled")
	case !c.Audit.DropIfFull:
		add("audit_blocking", LintWarn, "audit sink back-pressure blocks session operations when the buffer is full")
	}
	if c.Metrics.Enabled && !c.Metrics.EnableLatencyHistograms {
		add("latency_histograms_disabled", LintInfo, "backend latency histograms are disabled")
	}

	return ws
}
