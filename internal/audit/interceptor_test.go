package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
)

func newTestInterceptor(t *testing.T, store Store, opts ...InterceptorOption) *Interceptor {
	t.Helper()
	ic, err := NewInterceptor(store, opts...)
	if err != nil {
		t.Fatalf("NewInterceptor: %v", err)
	}
	return ic
}

func allEntries(t *testing.T, store Store) []Entry {
	t.Helper()
	entries, _, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return entries
}

func doRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", "audit-test/1.0")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestInterceptorRecordsOneEntry(t *testing.T) {
	store := NewMemStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ic := newTestInterceptor(t, store, WithClock(func() time.Time { return at }))

	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := doRequest(h, http.MethodGet, "/v1/recordings/rec1/report")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	entries := allEntries(t, store)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != ActionViewReport {
		t.Fatalf("action = %q, want %q", e.Action, ActionViewReport)
	}
	if e.ResourceKind != "recording" || e.ResourceID != "rec1" {
		t.Fatalf("resource = %s/%s, want recording/rec1", e.ResourceKind, e.ResourceID)
	}
	if e.StatusCode != http.StatusOK || !e.Success {
		t.Fatalf("status = %d success = %v, want 200 true", e.StatusCode, e.Success)
	}
	if e.Method != http.MethodGet || e.Path != "/v1/recordings/rec1/report" {
		t.Fatalf("unexpected method/path %s %s", e.Method, e.Path)
	}
	if !e.OccurredAt.Equal(at) {
		t.Fatalf("occurred_at = %v, want %v", e.OccurredAt, at)
	}
	if e.Origin != "192.0.2.1" {
		t.Fatalf("origin = %q, want 192.0.2.1", e.Origin)
	}
	if e.UserAgent != "audit-test/1.0" {
		t.Fatalf("user_agent = %q", e.UserAgent)
	}
	if e.ID == "" {
		t.Fatal("entry id is empty")
	}
}

func TestInterceptorSkipsUnauditedPaths(t *testing.T) {
	store := NewMemStore()
	ic := newTestInterceptor(t, store)
	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/info", "/openapi.yaml", "/"} {
		if rr := doRequest(h, http.MethodGet, path); rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rr.Code)
		}
	}
	if entries := allEntries(t, store); len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestInterceptorRecordsPanic(t *testing.T) {
	var buf bytes.Buffer
	obs.Logger().SetOutput(&buf)
	defer obs.Logger().SetOutput(os.Stdout)

	store := NewMemStore()
	ic := newTestInterceptor(t, store)
	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := doRequest(h, http.MethodGet, "/v1/recordings")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	entries := allEntries(t, store)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].StatusCode != http.StatusInternalServerError || entries[0].Success {
		t.Fatalf("entry status = %d success = %v", entries[0].StatusCode, entries[0].Success)
	}
	if !strings.Contains(buf.String(), "handler_panic") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestInterceptorOverridesDeniedAndFailedLogin(t *testing.T) {
	store := NewMemStore()
	ic := newTestInterceptor(t, store)
	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))

	doRequest(h, http.MethodPost, "/v1/auth/login")
	doRequest(h, http.MethodGet, "/v1/recordings/rec9")

	entries := allEntries(t, store)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != ActionAccessDenied {
		t.Fatalf("action = %q, want %q", entries[0].Action, ActionAccessDenied)
	}
	if entries[1].Action != ActionLoginFailed {
		t.Fatalf("action = %q, want %q", entries[1].Action, ActionLoginFailed)
	}
	for _, e := range entries {
		if e.Success {
			t.Fatalf("entry %s marked success", e.ID)
		}
	}
}

func TestInterceptorRecorderRefinement(t *testing.T) {
	store := NewMemStore()
	ic := newTestInterceptor(t, store)

	inner := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := RecorderFromContext(r.Context())
		if !ok {
			t.Fatal("recorder missing from context")
		}
		rec.SetActor("u1", "ada@example.org", "clinician")
		rec.SetResource("recording", "rec42")
		rec.AddMetadata("risk", "High")
		w.WriteHeader(http.StatusCreated)
	}))
	// The request id middleware runs outside the interceptor and stamps the
	// response header before handlers run.
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "req-123")
		inner.ServeHTTP(w, r)
	})

	doRequest(h, http.MethodPost, "/v1/recordings/analyze")

	entries := allEntries(t, store)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != ActionAnalyze {
		t.Fatalf("action = %q", e.Action)
	}
	if e.ActorID != "u1" || e.ActorEmail != "ada@example.org" || e.ActorRole != "clinician" {
		t.Fatalf("actor = %s/%s/%s", e.ActorID, e.ActorEmail, e.ActorRole)
	}
	if e.ResourceID != "rec42" {
		t.Fatalf("resource id = %q, want rec42", e.ResourceID)
	}
	if e.Metadata["risk"] != "High" {
		t.Fatalf("metadata = %v", e.Metadata)
	}
	if e.RequestID != "req-123" {
		t.Fatalf("request id = %q, want req-123", e.RequestID)
	}
}

type failStore struct{}

func (failStore) Append(context.Context, *Entry) error { return errors.New("disk full") }

func (failStore) List(context.Context, Filter) ([]Entry, int, error) {
	return nil, 0, errors.New("disk full")
}

func TestInterceptorAppendFailureDoesNotFailRequest(t *testing.T) {
	var buf bytes.Buffer
	obs.Logger().SetOutput(&buf)
	defer obs.Logger().SetOutput(os.Stdout)

	ic := newTestInterceptor(t, failStore{})
	published := 0
	ic.publish = func(Entry) { published++ }

	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := doRequest(h, http.MethodGet, "/v1/recordings")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(buf.String(), "audit_append_failed") {
		t.Fatalf("append failure not logged: %s", buf.String())
	}
	if published != 0 {
		t.Fatal("entry published despite append failure")
	}
}

func TestInterceptorPublishes(t *testing.T) {
	store := NewMemStore()
	var got []Entry
	ic := newTestInterceptor(t, store, WithPublisher(func(e Entry) { got = append(got, e) }))

	h := ic.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	doRequest(h, http.MethodGet, "/v1/recordings/rec7/signal")

	if len(got) != 1 {
		t.Fatalf("published %d entries, want 1", len(got))
	}
	stored := allEntries(t, store)
	if got[0].ID != stored[0].ID {
		t.Fatalf("published id %q, stored id %q", got[0].ID, stored[0].ID)
	}
	if got[0].ResourceID != "rec7" {
		t.Fatalf("resource id = %q", got[0].ResourceID)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		method, path string
		action       Action
		kind, id     string
		audited      bool
	}{
		{http.MethodGet, "/healthz", "", "", "", false},
		{http.MethodGet, "/metrics", "", "", "", false},
		{http.MethodGet, "/v1/info", "", "", "", false},
		{http.MethodPost, "/v1/auth/register", ActionCreate, "principal", "", true},
		{http.MethodPost, "/v1/auth/login", ActionLogin, "principal", "", true},
		{http.MethodPost, "/v1/auth/logout", ActionLogout, "principal", "", true},
		{http.MethodPost, "/v1/auth/password", ActionUpdate, "principal", "", true},
		{http.MethodGet, "/v1/me", ActionRead, "principal", "", true},
		{http.MethodPost, "/v1/recordings/analyze", ActionAnalyze, "recording", "", true},
		{http.MethodGet, "/v1/recordings", ActionRead, "recording", "", true},
		{http.MethodGet, "/v1/recordings/r1", ActionRead, "recording", "r1", true},
		{http.MethodDelete, "/v1/recordings/r1", ActionDelete, "recording", "r1", true},
		{http.MethodGet, "/v1/recordings/r1/signal", ActionRead, "recording", "r1", true},
		{http.MethodGet, "/v1/recordings/r1/report", ActionViewReport, "recording", "r1", true},
		{http.MethodGet, "/v1/recordings/r1/export", ActionExport, "recording", "r1", true},
		{http.MethodPost, "/v1/recordings/r1/feedback", ActionCreate, "feedback", "r1", true},
		{http.MethodGet, "/v1/recordings/r1/feedback", ActionRead, "feedback", "r1", true},
		{http.MethodPost, "/v1/feedback", ActionCreate, "feedback", "", true},
		{http.MethodGet, "/v1/audit", ActionRead, "audit", "", true},
		{http.MethodGet, "/v1/audit/export", ActionExport, "audit", "", true},
		{http.MethodGet, "/v1/audit/stream", ActionRead, "audit", "", true},
		{http.MethodGet, "/v1/users", ActionRead, "principal", "", true},
		{http.MethodGet, "/v1/users/u1", ActionRead, "principal", "u1", true},
		{http.MethodPatch, "/v1/users/u1/status", ActionPermissionChange, "principal", "u1", true},
		{http.MethodPatch, "/v1/users/u1/role", ActionPermissionChange, "principal", "u1", true},
		{http.MethodPost, "/v1/unknown", ActionCreate, "", "", true},
		{http.MethodGet, "/v1/unknown", ActionRead, "", "", true},
	}
	for _, tc := range tests {
		action, kind, id, audited := Classify(tc.method, tc.path)
		if audited != tc.audited {
			t.Fatalf("%s %s: audited = %v, want %v", tc.method, tc.path, audited, tc.audited)
		}
		if action != tc.action || kind != tc.kind || id != tc.id {
			t.Fatalf("%s %s: got (%q, %q, %q), want (%q, %q, %q)",
				tc.method, tc.path, action, kind, id, tc.action, tc.kind, tc.id)
		}
	}
}
