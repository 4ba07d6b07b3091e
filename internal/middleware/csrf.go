package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ewhitmore/driveline/internal/auth"
	"github.com/ewhitmore/driveline/internal/metrics"
	"github.com/ewhitmore/driveline/internal/security"
)

// CSRFHeader carries the token on requests; rotated replacements come
// back on the same header
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection validates and consumes CSRF tokens on state-changing
// requests. Tokens are single-use: a successful check burns the token
// and the rotated replacement is returned in the response header.
// Mount after the auth middleware; the token is bound to the session.
func CSRFProtection(csrfManager *security.CSRFManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			claims := auth.GetUserFromContext(r)
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			csrfToken := r.Header.Get(CSRFHeader)
			if csrfToken == "" {
				if cookie, err := r.Cookie("csrf_token"); err == nil {
					csrfToken = cookie.Value
				}
			}

			if csrfToken == "" {
				logger.Warn("CSRF token missing in request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("user_id", claims.UserID))
				metrics.CSRFFailuresTotal.WithLabelValues("MISSING").Inc()
				http.Error(w, "CSRF token missing", http.StatusForbidden)
				return
			}

			result, replacement, err := csrfManager.ValidateAndUse(csrfToken, claims.SessionID)
			if err != nil || !result.Valid {
				logger.Warn("CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("user_id", claims.UserID),
					slog.String("reason", result.Reason))
				metrics.CSRFFailuresTotal.WithLabelValues(result.Reason).Inc()
				http.Error(w, "CSRF token invalid", http.StatusForbidden)
				return
			}

			w.Header().Set(CSRFHeader, replacement)
			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
