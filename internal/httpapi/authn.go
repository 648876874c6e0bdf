package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			writeErrorCode(w, r, http.StatusUnauthorized, "token_missing", err.Error())
			return
		}

		principal, err := a.auth.Verify(r.Context(), token)
		if err != nil {
			rejectToken(w, r, err)
			return
		}

		// The interceptor sits outside this middleware; report who the
		// request turned out to be.
		if rec, ok := audit.RecorderFromContext(r.Context()); ok {
			rec.SetActor(principal.ID, principal.Email, string(principal.Role))
		}

		ctx := auth.ContextWithPrincipal(r.Context(), *principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeErrorCode(w, r, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeErrorCode(w, r, http.StatusUnauthorized, "token_invalid", "invalid token")
	case errors.Is(err, auth.ErrAccountDeactivated):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeErrorCode(w, r, http.StatusUnauthorized, "account_deactivated", "account deactivated")
	case errors.Is(err, auth.ErrAccountLocked):
		writeErrorCode(w, r, http.StatusLocked, "account_locked", "account locked")
	default:
		writeError(w, r, http.StatusInternalServerError, "authentication error")
	}
}

// RequireRole gates a handler on the authenticated principal's role. Admins
// pass every gate. 401 and 403 both carry WWW-Authenticate so API clients
// can distinguish a missing session from an insufficient one.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				writeErrorCode(w, r, http.StatusUnauthorized, "token_missing", "authentication required")
				return
			}
			if err := auth.Authorize(principal, roles...); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				writeErrorCode(w, r, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// principalOr401 pulls the authenticated principal, answering 401 itself
// when the middleware did not establish one.
func principalOr401(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer`)
		writeErrorCode(w, r, http.StatusUnauthorized, "token_missing", "authentication required")
		return auth.Principal{}, false
	}
	return principal, true
}
