package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
	"github.com/cordobacasas/casas/internal/view"
)

// AuthHandler handles admin login and logout.
type AuthHandler struct {
	auth         *service.AuthService
	limiter      *service.KeyedLimiter
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil to disable
// login throttling.
func NewAuthHandler(auth *service.AuthService, limiter *service.KeyedLimiter, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter, cookieSecure: cookieSecure}
}

// HandleLoginPage renders the login form.
// GET /admin/login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticateRequest(r, h.auth); err == nil {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	view.LoginPage("").Render(r.Context(), w)
}

// HandleLogin checks the admin password and sets the session cookie.
// POST /admin/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		w.WriteHeader(http.StatusTooManyRequests)
		view.LoginPage("Demasiados intentos. Esperá un momento e intentá de nuevo.").Render(r.Context(), w)
		return
	}

	token, session, err := h.auth.Login(r.Context(), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidInput) {
			w.WriteHeader(http.StatusUnauthorized)
			view.LoginPage("Contraseña incorrecta.").Render(r.Context(), w)
			return
		}
		slog.Error("admin login", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		view.LoginPage("Ocurrió un error inesperado. Intentá de nuevo.").Render(r.Context(), w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
	slog.Info("admin logged in", "session_id", session.ID)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleLogout revokes the session and clears the cookie.
// POST /admin/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if session := SessionFromContext(r.Context()); session != nil {
		h.auth.Logout(session)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
