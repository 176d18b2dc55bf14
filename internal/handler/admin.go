package handler

import (
	"log/slog"
	"net/http"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
	"github.com/cordobacasas/casas/internal/view"
)

// AdminHandler serves the admin dashboard and listing status changes.
type AdminHandler struct {
	listings *service.ListingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(listings *service.ListingService) *AdminHandler {
	return &AdminHandler{listings: listings}
}

// HandleDashboard lists every listing regardless of status.
// GET /admin
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListAll(r.Context())
	if err != nil {
		slog.Error("list all listings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.DashboardPage(listings).Render(r.Context(), w)
}

// HandleSetStatus activates, pauses or deletes a listing.
// POST /admin/listings/{id}/status
func (h *AdminHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.ListingStatus(r.FormValue("status"))
	if err := h.listings.SetStatus(r.Context(), r.PathValue("id"), status); err != nil {
		code := errorStatus("set listing status", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleToggleFeatured flips a listing's featured flag.
// POST /admin/listings/{id}/featured
func (h *AdminHandler) HandleToggleFeatured(w http.ResponseWriter, r *http.Request) {
	if _, err := h.listings.ToggleFeatured(r.Context(), r.PathValue("id")); err != nil {
		code := errorStatus("toggle featured", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
