package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal auth.Principal `json:"principal"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	principal, err := a.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, r, http.StatusConflict, "email already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	a.annotate(r.Context(), "principal", principal.ID, nil)
	if rec, ok := audit.RecorderFromContext(r.Context()); ok {
		rec.SetActor(principal.ID, principal.Email, string(principal.Role))
	}
	w.Header().Set("Location", "/v1/users/"+principal.ID)
	writeJSON(w, http.StatusCreated, principal)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	token, expiresAt, principal, err := a.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		// Record which account the attempt targeted even though nobody is
		// authenticated; security review needs it.
		if rec, ok := audit.RecorderFromContext(r.Context()); ok {
			rec.SetActor("", email, "")
		}
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			obs.IncLoginFailure("locked")
			a.annotate(r.Context(), "", "", map[string]string{"reason": "locked"})
			writeErrorCode(w, r, http.StatusLocked, "account_locked", "account temporarily locked")
		case errors.Is(err, auth.ErrAccountDeactivated):
			obs.IncLoginFailure("deactivated")
			a.annotate(r.Context(), "", "", map[string]string{"reason": "deactivated"})
			writeErrorCode(w, r, http.StatusUnauthorized, "account_deactivated", "account deactivated")
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.IncLoginFailure("bad_credentials")
			a.annotate(r.Context(), "", "", map[string]string{"reason": "bad_credentials"})
			writeErrorCode(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	if rec, ok := audit.RecorderFromContext(r.Context()); ok {
		rec.SetActor(principal.ID, principal.Email, string(principal.Role))
	}
	a.annotate(r.Context(), "principal", principal.ID, nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: *principal,
	})
}

// handleLogout exists for the audit trail: tokens are stateless, so ending a
// session is the client discarding its token, and this endpoint records that
// the user did so.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	a.annotate(r.Context(), "principal", principal.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.auth.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeErrorCode(w, r, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	a.annotate(r.Context(), "principal", principal.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	a.annotate(r.Context(), "principal", principal.ID, nil)
	writeJSON(w, http.StatusOK, principal)
}
