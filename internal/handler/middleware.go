package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "admin_session"

const authCookieName = "auth_token"

// SessionFromContext extracts the admin session from the request context.
// Returns nil if the request is not authenticated.
func SessionFromContext(ctx context.Context) *domain.AdminSession {
	session, _ := ctx.Value(sessionContextKey).(*domain.AdminSession)
	return session
}

// RequireAdmin protects admin routes. It validates the auth_token cookie and
// injects the session into the request context. Page loads without a valid
// session are redirected to the login form; other requests get 401.
func RequireAdmin(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := authenticateRequest(r, auth)
		if err != nil {
			if r.Method == http.MethodGet {
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticateRequest(r *http.Request, auth *service.AuthService) (*domain.AdminSession, error) {
	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return nil, err
	}
	return auth.ValidateToken(cookie.Value)
}

// SecurityHeaders sets conservative browser security headers on every
// response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote address without the port. The
// first X-Forwarded-For entry is used when present.
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
