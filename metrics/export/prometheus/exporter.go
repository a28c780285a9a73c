package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authsession.MetricsSnapshot
	AuditDropped() uint64
}

// sessionSource is implemented by *authsession.Manager. Sources without it
// render counters only.
type sessionSource interface {
	Snapshot() authsession.State
	NextRefresh() (time.Time, bool)
}

// PrometheusExporter renders Manager metrics in Prometheus text exposition
// format, plus gauges describing the live session.
type PrometheusExporter struct {
	source metricsSource
	now    func() time.Time
}

// NewPrometheusExporter creates an exporter reading from manager.
func NewPrometheusExporter(manager *authsession.Manager) *PrometheusExporter {
	return &PrometheusExporter{source: manager, now: time.Now}
}

// NewPrometheusExporterFromSource creates an exporter from any value exposing a
// metrics snapshot and an audit drop count.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source, now: time.Now}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" while metrics are disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var buf bytes.Buffer
	for _, def := range internaldefs.CounterDefs {
		family(&buf, def.Name, def.Help, "counter")
		fmt.Fprintf(&buf, "%s %d\n", def.Name, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		latency(&buf, def, snap.Histograms[def.ID])
	}
	family(&buf, "authsession_audit_dropped_total", "Audit events lost to dispatcher backpressure.", "counter")
	fmt.Fprintf(&buf, "authsession_audit_dropped_total %d\n", dropped)

	if s, ok := p.source.(sessionSource); ok {
		p.sessionGauges(&buf, s)
	}
	return buf.String()
}

func (p *PrometheusExporter) sessionGauges(buf *bytes.Buffer, s sessionSource) {
	st := s.Snapshot()
	now := p.now()

	var signedIn, awaiting int
	if st.IsAuthenticated {
		signedIn = 1
	}
	if st.TwoFactorPending != nil {
		awaiting = 1
	}
	family(buf, "authsession_signed_in", "1 while the session holds a verified access token.", "gauge")
	fmt.Fprintf(buf, "authsession_signed_in %d\n", signedIn)
	family(buf, "authsession_awaiting_second_factor", "1 while a login waits for a second factor.", "gauge")
	fmt.Fprintf(buf, "authsession_awaiting_second_factor %d\n", awaiting)

	if st.IsAuthenticated && !st.ExpiresAt.IsZero() {
		family(buf, "authsession_access_token_ttl_seconds", "Seconds until the access token expires.", "gauge")
		fmt.Fprintf(buf, "authsession_access_token_ttl_seconds %s\n", seconds(st.ExpiresAt.Sub(now)))
	}
	if at, ok := s.NextRefresh(); ok {
		family(buf, "authsession_next_refresh_seconds", "Seconds until the scheduled refresh fires.", "gauge")
		fmt.Fprintf(buf, "authsession_next_refresh_seconds %s\n", seconds(at.Sub(now)))
	}
}

func latency(buf *bytes.Buffer, def internaldefs.HistogramDef, raw []uint64) {
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	family(buf, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
	}
	// Bucket counts are all the snapshot keeps, so the sum is not known.
	fmt.Fprintf(buf, "%s_count %d\n%s_sum 0\n", def.Name, cumulative[len(cumulative)-1], def.Name)
}

func family(buf *bytes.Buffer, name, help, kind string) {
	help = strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func seconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.3f", d.Seconds())
}
