package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every route.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Access-control metrics. An audit append failure must not fail the request
// that triggered it, so this counter plus the error log line is the only
// signal operators get.
var (
	auditAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Audit entries that could not be persisted.",
	})

	loginFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_failures_total",
			Help: "Failed login attempts by reason.",
		},
		[]string{"reason"},
	)

	accountLockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "account_lockouts_total",
		Help: "Accounts locked after repeated failed logins.",
	})

	recordingsAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordings_analyzed_total",
			Help: "ECG recordings analyzed by resulting risk level.",
		},
		[]string{"risk"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		auditAppendFailures, loginFailures, accountLockouts, recordingsAnalyzed,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncAuditAppendFailure counts an audit entry that could not be stored.
func IncAuditAppendFailure() { auditAppendFailures.Inc() }

// IncLoginFailure counts a failed login by reason (bad_credentials, locked,
// deactivated).
func IncLoginFailure(reason string) { loginFailures.WithLabelValues(reason).Inc() }

// IncLockout counts an account that just transitioned to locked.
func IncLockout() { accountLockouts.Inc() }

// IncRecordingAnalyzed counts a completed analysis by risk level.
func IncRecordingAnalyzed(risk string) { recordingsAnalyzed.WithLabelValues(risk).Inc() }

// Instrument wraps a handler with RPS/latency/in-flight accounting.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// Resource suffixes that may follow a recording or user id in the path.
// Anything else is left verbatim so unknown paths stay distinguishable.
var canonicalSuffixes = map[string]map[string]bool{
	"recordings": {"signal": true, "report": true, "export": true, "feedback": true},
	"users":      {"status": true, "role": true},
}

// CanonicalPath collapses resource identifiers to :id so metric label
// cardinality stays bounded.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return p
	}
	suffixes, ok := canonicalSuffixes[parts[1]]
	if !ok {
		return p
	}
	switch len(parts) {
	case 3:
		// Fixed collection routes keep their own label.
		if parts[1] == "recordings" && parts[2] == "analyze" {
			return p
		}
		return "/v1/" + parts[1] + "/:id"
	case 4:
		if suffixes[parts[3]] {
			return "/v1/" + parts[1] + "/:id/" + parts[3]
		}
	}
	return p
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush on the wrapped writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
