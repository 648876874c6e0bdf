package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
)

type listAuditResponse struct {
	Items  []audit.Entry `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type setStatusRequest struct {
	Active *bool `json:"active"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	f, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, total, err := a.auditStore.List(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, listAuditResponse{
		Items:  entries,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func (a *API) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}

	f, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Exports are bounded but generous; the list default is too small for a
	// compliance pull.
	if r.URL.Query().Get("limit") == "" {
		f.Limit = 10_000
	}

	entries, _, err := a.auditStore.List(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
		return
	}

	a.annotate(r.Context(), "audit", "", map[string]string{
		"format":  format,
		"entries": strconv.Itoa(len(entries)),
	})

	stamp := time.Now().UTC().Format("20060102T150405Z")
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-`+stamp+`.json"`)
		err = audit.WriteJSON(w, entries)
	case "ndjson":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-`+stamp+`.ndjson"`)
		err = audit.WriteNDJSON(w, entries)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-`+stamp+`.csv"`)
		err = audit.WriteCSV(w, entries)
	default:
		writeError(w, r, http.StatusBadRequest, "format must be json, ndjson or csv")
		return
	}
	if err != nil {
		// Headers are gone; all we can do is cut the stream and log.
		writeError(w, r, http.StatusInternalServerError, "export failed")
	}
}

// AuditStream pushes live access-event summaries over Server-Sent Events.
// Summaries never carry payloads, so the monitor cannot leak PHI.
func (a *API) AuditStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The middleware chain wraps the ResponseWriter several times; the
	// controller follows the Unwrap chain down to the real flusher. The
	// first Flush doubles as the support check before anything is written.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := a.stream.Subscribe(r.Context())

	_, _ = w.Write([]byte(": audit stream started\n\n"))
	_ = rc.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principals, err := a.auth.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "user listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": principals})
}

// handleUserResource routes GET /v1/users/{id} and the two admin mutations,
// PATCH .../status and PATCH .../role.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getUser(w, r, id)
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.setUserStatus(w, r, id)
	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.setUserRole(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.auth.Get(r.Context(), id)
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "active is required")
		return
	}
	if err := a.auth.SetActive(r.Context(), id, *req.Active); err != nil {
		handleUserError(w, r, err)
		return
	}
	a.annotate(r.Context(), "principal", id, map[string]string{
		"change": "status",
		"active": boolString(*req.Active),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setUserRole(w http.ResponseWriter, r *http.Request, id string) {
	var req setRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "role must be user, clinician or admin")
		return
	}
	if err := a.auth.SetRole(r.Context(), id, role); err != nil {
		handleUserError(w, r, err)
		return
	}
	a.annotate(r.Context(), "principal", id, map[string]string{
		"change": "role",
		"role":   string(role),
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "user update failed")
	}
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 1000)
	if err != nil {
		return audit.Filter{}, errors.New("limit " + err.Error())
	}
	offset, err := parsePositiveInt(q.Get("offset"), 0, 0, 1_000_000)
	if err != nil {
		return audit.Filter{}, errors.New("offset " + err.Error())
	}

	f := audit.Filter{
		ActorID:      strings.TrimSpace(q.Get("actor")),
		ResourceKind: strings.TrimSpace(q.Get("resource_kind")),
		ResourceID:   strings.TrimSpace(q.Get("resource_id")),
		Limit:        limit,
		Offset:       offset,
	}
	if raw := strings.TrimSpace(q.Get("action")); raw != "" {
		action := audit.Action(raw)
		if !action.Valid() {
			return audit.Filter{}, errors.New("unknown action " + raw)
		}
		f.Action = action
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("from must be RFC 3339")
		}
		f.Since = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("to must be RFC 3339")
		}
		f.Until = t
	}
	return f, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
