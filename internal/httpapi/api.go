// Package httpapi is the HTTP surface of the CardioAI backend: auth, ECG
// recordings, the admin audit console and the operational endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/record"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/stream"
)

// ReadyProbe reports whether the backing store can serve traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API owns the router and the middleware chain.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	records    *record.Service
	auditStore audit.Store
	audits     *audit.Interceptor
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string

	maxBodyBytes int64
	rateBurst    int
	ratePerSec   int
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, records *record.Service,
	auditStore audit.Store, interceptor *audit.Interceptor, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		records:    records,
		auditStore: auditStore,
		audits:     interceptor,
		stream:     st,
		readyProbe: rp,
		version:    version,

		maxBodyBytes: 1 << 20,
		rateBurst:    20,
		ratePerSec:   10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth + account
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/password", a.handleChangePassword)
	a.mux.HandleFunc("/v1/me", a.handleMe)

	// recordings
	a.mux.HandleFunc("/v1/recordings/analyze", a.handleAnalyze)
	a.mux.HandleFunc("/v1/recordings", a.handleRecordingsCollection)
	a.mux.HandleFunc("/v1/recordings/", a.handleRecordingResource)
	a.mux.HandleFunc("/v1/feedback", a.handleFeedback)

	// admin: audit console and user directory
	a.mux.Handle("/v1/audit", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAuditList)))
	a.mux.Handle("/v1/audit/export", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAuditExport)))
	a.mux.Handle("/v1/audit/stream", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.AuditStream)))
	a.mux.Handle("/v1/users", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleUsersCollection)))
	a.mux.Handle("/v1/users/", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleUserResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// ConfigureLimits sets the request body cap and the per-client rate limit.
// Non-positive values keep the defaults. Call before Handler.
func (a *API) ConfigureLimits(maxBodyBytes int64, burst, perSecond int) {
	if maxBodyBytes > 0 {
		a.maxBodyBytes = maxBodyBytes
	}
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSecond > 0 {
		a.ratePerSec = perSecond
	}
}

// Handler assembles the middleware chain. The audit interceptor sits inside
// the request-id and logging layers so its entries can reference the request
// id, and outside authentication so denied requests are still recorded.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.audits != nil {
		h = a.audits.Wrap(h)
	}
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// annotate refines the audit entry for the request in flight.
func (a *API) annotate(ctx context.Context, kind, id string, meta map[string]string) {
	rec, ok := audit.RecorderFromContext(ctx)
	if !ok {
		return
	}
	if kind != "" || id != "" {
		rec.SetResource(kind, id)
	}
	for k, v := range meta {
		rec.AddMetadata(k, v)
	}
}
