// Package prometheus renders authsession metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an [authsession.Manager] and exposes an
// [http.Handler]. Counter names are prefixed authsession_*_total; the single
// histogram is authsession_backend_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate session state.
package prometheus
