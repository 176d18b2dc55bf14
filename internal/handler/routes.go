package handler

import (
	"net/http"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
)

// Dependencies are the services the routes are wired to. Files, Metrics,
// DB and LoginLimiter are optional.
type Dependencies struct {
	Auth         *service.AuthService
	Listings     *service.ListingService
	Drafts       *service.DraftService
	Files        domain.FileReader
	LoginLimiter *service.KeyedLimiter
	Metrics      http.Handler
	DB           Pinger

	WhatsAppNumber string
	CookieSecure   bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := NewHealthHandler(deps.DB)
	public := NewPublicHandler(deps.Listings, deps.WhatsAppNumber)
	authH := NewAuthHandler(deps.Auth, deps.LoginLimiter, deps.CookieSecure)
	admin := NewAdminHandler(deps.Listings)
	drafts := NewDraftHandler(deps.Drafts)

	requireAdmin := func(h http.HandlerFunc) http.Handler {
		return RequireAdmin(deps.Auth, h)
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Files != nil {
		mux.HandleFunc("GET /files/{key...}", NewFileHandler(deps.Files).HandleServe)
	}

	// Public pages.
	mux.HandleFunc("GET /", public.HandleHome)
	mux.HandleFunc("GET /propiedades", public.HandleBrowse)
	mux.HandleFunc("GET /propiedad/{id}", public.HandleDetail)

	// Auth.
	mux.HandleFunc("GET /admin/login", authH.HandleLoginPage)
	mux.HandleFunc("POST /admin/login", authH.HandleLogin)
	mux.Handle("POST /admin/logout", requireAdmin(authH.HandleLogout))

	// Dashboard.
	mux.Handle("GET /admin", requireAdmin(admin.HandleDashboard))
	mux.Handle("POST /admin/listings/{id}/status", requireAdmin(admin.HandleSetStatus))
	mux.Handle("POST /admin/listings/{id}/featured", requireAdmin(admin.HandleToggleFeatured))

	// Listing editor.
	mux.Handle("POST /admin/drafts", requireAdmin(drafts.HandleNew))
	mux.Handle("POST /admin/listings/{id}/edit", requireAdmin(drafts.HandleEdit))
	mux.Handle("GET /admin/drafts/{id}", requireAdmin(drafts.HandleShow))
	mux.Handle("POST /admin/drafts/{id}/fields", requireAdmin(drafts.HandleFields))
	mux.Handle("POST /admin/drafts/{id}/primary-image", requireAdmin(drafts.HandlePrimaryImage))
	mux.Handle("POST /admin/drafts/{id}/images", requireAdmin(drafts.HandleImages))
	mux.Handle("POST /admin/drafts/{id}/images/primary", requireAdmin(drafts.HandleSetPrimary))
	mux.Handle("POST /admin/drafts/{id}/images/delete", requireAdmin(drafts.HandleDeleteImage))
	mux.Handle("POST /admin/drafts/{id}/submit", requireAdmin(drafts.HandleSubmit))
	mux.Handle("POST /admin/drafts/{id}/discard", requireAdmin(drafts.HandleDiscard))
}
