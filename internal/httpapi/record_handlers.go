package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/record"
)

type listRecordingsResponse struct {
	Items  []record.Recording `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type feedbackRequest struct {
	RecordingID   string `json:"recording_id"`
	TrueDiagnosis string `json:"true_diagnosis"`
	Notes         string `json:"notes"`
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "unable to read request body")
		return
	}

	rec, err := a.records.Analyze(r.Context(), principal, raw, r.Header.Get("Content-Type"))
	if err != nil {
		handleRecordError(w, r, err)
		return
	}

	a.annotate(r.Context(), "recording", rec.ID, map[string]string{
		"risk": string(rec.Classification.RiskLevel),
	})
	w.Header().Set("Location", "/v1/recordings/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleRecordingsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parsePositiveInt(q.Get("offset"), 0, 0, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}
	f := record.Filter{
		OwnerID:        strings.TrimSpace(q.Get("owner")),
		Risk:           strings.TrimSpace(q.Get("risk")),
		IncludeDeleted: q.Get("include_deleted") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	items, total, err := a.records.ListForPrincipal(r.Context(), principal, f)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRecordingsResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (a *API) handleRecordingResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/recordings/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getRecording(w, r, principal, id)
		case http.MethodDelete:
			a.deleteRecording(w, r, principal, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		switch parts[1] {
		case "signal":
			a.getRecordingSignal(w, r, principal, id)
		case "report":
			a.getRecordingReport(w, r, principal, id)
		case "export":
			a.exportRecording(w, r, principal, id)
		case "feedback":
			a.listRecordingFeedback(w, r, principal, id)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getRecording(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	rec, err := a.records.Get(r.Context(), principal, id)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) deleteRecording(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	if err := a.records.Delete(r.Context(), principal, id); err != nil {
		handleRecordError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getRecordingSignal(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	sig, err := a.records.Signal(r.Context(), principal, id)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (a *API) getRecordingReport(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	rep, err := a.records.Report(r.Context(), principal, id)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) exportRecording(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	bundle, err := a.records.Export(r.Context(), principal, id)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="recording-`+id+`.json"`)
	writeJSON(w, http.StatusOK, bundle)
}

func (a *API) listRecordingFeedback(w http.ResponseWriter, r *http.Request, principal auth.Principal, id string) {
	fbs, err := a.records.ListFeedback(r.Context(), principal, id)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": fbs})
}

func (a *API) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.RecordingID = strings.TrimSpace(req.RecordingID)
	if req.RecordingID == "" {
		writeError(w, r, http.StatusBadRequest, "recording_id is required")
		return
	}

	fb, err := a.records.SubmitFeedback(r.Context(), principal, req.RecordingID, req.TrueDiagnosis, req.Notes)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}

	a.annotate(r.Context(), "feedback", fb.ID, map[string]string{
		"recording_id": fb.RecordingID,
	})
	writeJSON(w, http.StatusCreated, fb)
}

func handleRecordError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, record.ErrUnsupportedContentType):
		writeError(w, r, http.StatusUnsupportedMediaType, "upload must be application/json")
	case errors.Is(err, ecg.ErrTooShort):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ecg.ErrBadSignal):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, record.ErrInvalidFeedback):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
		writeErrorCode(w, r, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, record.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "recording not found")
	case errors.Is(err, record.ErrPayloadUnreadable):
		writeError(w, r, http.StatusInternalServerError, "unable to retrieve recording")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
