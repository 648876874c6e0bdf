package audit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ids"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
)

// Recorder lets handlers refine the entry for the request in flight. The
// interceptor classifies from method and path alone; handlers know the
// authenticated actor and the resolved resource and report them here.
type Recorder struct {
	mu        sync.Mutex
	action    Action
	hasAction bool

	kind string
	id   string

	actorID    string
	actorEmail string
	actorRole  string

	meta map[string]string
}

// SetAction replaces the classified action.
func (r *Recorder) SetAction(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.action = a
	r.hasAction = true
}

// SetResource records the resource the request resolved to.
func (r *Recorder) SetResource(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kind = kind
	r.id = id
}

// SetActor records who performed the request. Empty fields are left as-is,
// so a failed login can report the attempted email without an id.
func (r *Recorder) SetActor(id, email, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		r.actorID = id
	}
	if email != "" {
		r.actorEmail = email
	}
	if role != "" {
		r.actorRole = role
	}
}

// AddMetadata attaches one small string fact to the entry. Values must never
// contain PHI; keep them to reasons, counts and flags.
func (r *Recorder) AddMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.meta == nil {
		r.meta = make(map[string]string)
	}
	r.meta[key] = value
}

func (r *Recorder) apply(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasAction {
		e.Action = r.action
	}
	if r.kind != "" {
		e.ResourceKind = r.kind
	}
	if r.id != "" {
		e.ResourceID = r.id
	}
	if r.actorID != "" {
		e.ActorID = r.actorID
	}
	if r.actorEmail != "" {
		e.ActorEmail = r.actorEmail
	}
	if r.actorRole != "" {
		e.ActorRole = r.actorRole
	}
	if len(r.meta) > 0 {
		e.Metadata = make(map[string]string, len(r.meta))
		for k, v := range r.meta {
			e.Metadata[k] = v
		}
	}
}

type recorderKey struct{}

// ContextWithRecorder attaches the request recorder to the context.
func ContextWithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFromContext returns the recorder for the request in flight, if the
// request is audited.
func RecorderFromContext(ctx context.Context) (*Recorder, bool) {
	rec, ok := ctx.Value(recorderKey{}).(*Recorder)
	return rec, ok
}

// Interceptor writes exactly one entry per audited request, panics included.
// Storage failures never fail the request: they are logged and counted, and
// the response goes out regardless.
type Interceptor struct {
	store   Store
	publish func(Entry)
	now     func() time.Time
}

type InterceptorOption func(*Interceptor)

// WithPublisher forwards each stored entry, for live monitoring feeds.
func WithPublisher(fn func(Entry)) InterceptorOption {
	return func(i *Interceptor) { i.publish = fn }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) InterceptorOption {
	return func(i *Interceptor) { i.now = now }
}

func NewInterceptor(store Store, opts ...InterceptorOption) (*Interceptor, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	i := &Interceptor{store: store, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Wrap audits every request Classify marks as audited. A recorder is placed
// in the request context for downstream handlers. Panics are converted into
// a 500 response and still produce an entry.
func (i *Interceptor) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action, kind, id, audited := Classify(r.Method, r.URL.Path)
		if !audited {
			next.ServeHTTP(w, r)
			return
		}
		rec := &Recorder{}
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			if v := recover(); v != nil {
				obs.LogEvent("error", "handler_panic", map[string]any{
					"panic":  fmt.Sprint(v),
					"method": r.Method,
					"path":   r.URL.Path,
				})
				if !sw.wrote {
					sw.Header().Set("Content-Type", "application/json")
					sw.WriteHeader(http.StatusInternalServerError)
					_, _ = sw.Write([]byte(`{"error":"internal server error"}`))
				}
			}
			i.record(r, sw, rec, action, kind, id)
		}()
		next.ServeHTTP(sw, r.WithContext(ContextWithRecorder(r.Context(), rec)))
	})
}

func (i *Interceptor) record(r *http.Request, sw *statusWriter, rec *Recorder, action Action, kind, id string) {
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}
	e := &Entry{
		ID:           ids.New(),
		OccurredAt:   i.now().UTC(),
		Action:       action,
		ResourceKind: kind,
		ResourceID:   id,
		Method:       r.Method,
		Path:         r.URL.Path,
		Origin:       clientIP(r),
		UserAgent:    r.UserAgent(),
		RequestID:    sw.Header().Get("X-Request-ID"),
		StatusCode:   status,
		Success:      status < http.StatusBadRequest,
	}
	rec.apply(e)
	switch {
	case e.Action == ActionLogin && status >= http.StatusBadRequest:
		e.Action = ActionLoginFailed
	case (status == http.StatusUnauthorized || status == http.StatusForbidden) &&
		e.Action != ActionLogin && e.Action != ActionLoginFailed:
		e.Action = ActionAccessDenied
	}

	// The response may already be on the wire and the client gone; the
	// append must not be cut short by request cancellation.
	if err := i.store.Append(context.WithoutCancel(r.Context()), e); err != nil {
		obs.IncAuditAppendFailure()
		obs.LogEvent("error", "audit_append_failed", map[string]any{
			"error":  err.Error(),
			"action": string(e.Action),
			"method": e.Method,
			"path":   e.Path,
		})
		return
	}
	if i.publish != nil {
		i.publish(*e)
	}
}

// Classify maps a request to its audit action and resource. Health probes,
// metrics and docs are not audited; everything under /v1 except /v1/info is.
func Classify(method, path string) (action Action, kind, id string, audited bool) {
	if !strings.HasPrefix(path, "/v1/") {
		return "", "", "", false
	}
	switch path {
	case "/v1/info":
		return "", "", "", false
	case "/v1/auth/register":
		return ActionCreate, "principal", "", true
	case "/v1/auth/login":
		return ActionLogin, "principal", "", true
	case "/v1/auth/logout":
		return ActionLogout, "principal", "", true
	case "/v1/auth/password":
		return ActionUpdate, "principal", "", true
	case "/v1/me":
		return ActionRead, "principal", "", true
	case "/v1/recordings/analyze":
		return ActionAnalyze, "recording", "", true
	case "/v1/recordings":
		return ActionRead, "recording", "", true
	case "/v1/feedback":
		return ActionCreate, "feedback", "", true
	case "/v1/audit":
		return ActionRead, "audit", "", true
	case "/v1/audit/export":
		return ActionExport, "audit", "", true
	case "/v1/audit/stream":
		return ActionRead, "audit", "", true
	case "/v1/users":
		return ActionRead, "principal", "", true
	}
	if rest := strings.TrimPrefix(path, "/v1/recordings/"); rest != path {
		id, suffix, _ := strings.Cut(rest, "/")
		switch suffix {
		case "":
			if method == http.MethodDelete {
				return ActionDelete, "recording", id, true
			}
			return ActionRead, "recording", id, true
		case "signal":
			return ActionRead, "recording", id, true
		case "report":
			return ActionViewReport, "recording", id, true
		case "export":
			return ActionExport, "recording", id, true
		case "feedback":
			if method == http.MethodPost {
				return ActionCreate, "feedback", id, true
			}
			return ActionRead, "feedback", id, true
		}
	}
	if rest := strings.TrimPrefix(path, "/v1/users/"); rest != path {
		id, suffix, _ := strings.Cut(rest, "/")
		switch suffix {
		case "":
			return ActionRead, "principal", id, true
		case "status", "role":
			return ActionPermissionChange, "principal", id, true
		}
	}
	switch method {
	case http.MethodPost:
		return ActionCreate, "", "", true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, "", "", true
	case http.MethodDelete:
		return ActionDelete, "", "", true
	}
	return ActionRead, "", "", true
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.status = http.StatusOK
		w.wrote = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach Flush on the wrapped writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
