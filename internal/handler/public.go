package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
	"github.com/cordobacasas/casas/internal/view"
)

// PublicHandler serves the public listing pages.
type PublicHandler struct {
	listings       *service.ListingService
	whatsAppNumber string
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(listings *service.ListingService, whatsAppNumber string) *PublicHandler {
	return &PublicHandler{listings: listings, whatsAppNumber: whatsAppNumber}
}

// HandleHome renders the featured listings.
// GET /
func (h *PublicHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		view.NotFoundPage().Render(r.Context(), w)
		return
	}

	filter := parseFilter(r)
	listings, err := h.listings.ListFeatured(r.Context(), filter)
	if err != nil {
		slog.Error("list featured listings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.HomePage(listings, filter).Render(r.Context(), w)
}

// HandleBrowse renders every active listing matching the query filters.
// GET /propiedades?tipo=&operacion=&precio_max=
func (h *PublicHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	listings, err := h.listings.ListPublished(r.Context(), filter)
	if err != nil {
		slog.Error("list published listings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.BrowsePage(listings, filter).Render(r.Context(), w)
}

// HandleDetail renders an active listing.
// GET /propiedad/{id}
func (h *PublicHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.GetPublished(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			view.NotFoundPage().Render(r.Context(), w)
			return
		}
		slog.Error("get listing", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.DetailPage(l, h.whatsAppNumber).Render(r.Context(), w)
}

// parseFilter reads the public filter query parameters. Unknown values are
// ignored rather than rejected.
func parseFilter(r *http.Request) domain.ListingFilter {
	q := r.URL.Query()
	var f domain.ListingFilter
	if t := domain.PropertyType(q.Get("tipo")); t.Valid() {
		f.Type = t
	}
	if op := domain.Operation(q.Get("operacion")); op.Valid() {
		f.Operation = op
	}
	if v := q.Get("precio_max"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p > 0 {
			f.MaxPrice = p
		}
	}
	return f
}
