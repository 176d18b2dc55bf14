// Package view renders the site's HTML pages and fragments as templ
// components.
package view

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// ImageSectionID is the element patched when a draft's images change.
const ImageSectionID = "draft-images"

var propertyTypeLabels = map[domain.PropertyType]string{
	domain.PropertyTypeHouse:      "Casa",
	domain.PropertyTypeApartment:  "Departamento",
	domain.PropertyTypeLand:       "Terreno",
	domain.PropertyTypeCommercial: "Local",
	domain.PropertyTypeOffice:     "Oficina",
	domain.PropertyTypeOther:      "Otro",
}

var (
	operations = []domain.Operation{domain.OperationSale, domain.OperationRental}
	statuses   = []domain.ListingStatus{domain.StatusActive, domain.StatusPaused, domain.StatusDeleted}
)

func typeLabel(t domain.PropertyType) string {
	if l, ok := propertyTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

func coverImage(l *domain.Listing) string {
	return service.GalleryImages(l)[0]
}

func galleryAlt(title string, i int) string {
	return title + " " + strconv.Itoa(i+1)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formFloat leaves zero blank so empty inputs stay empty.
func formFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return formatNumber(f)
}

func formFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatNumber(*f)
}

func formIntPtr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func maxPriceValue(f domain.ListingFilter) string {
	if f.MaxPrice <= 0 {
		return ""
	}
	return formatNumber(f.MaxPrice)
}

func featuredLabel(featured bool) string {
	if featured {
		return "Sí"
	}
	return "No"
}

func draftTitle(d *domain.ListingDraft) string {
	if d.ListingID != "" {
		return "Editar propiedad"
	}
	return "Nueva propiedad"
}

func imageCount(n, max int) string {
	return fmt.Sprintf("%d de %d imágenes", n, max)
}

func isPrimary(d *domain.ListingDraft, img domain.StoredImage) bool {
	p, ok := d.Primary()
	return ok && p.URL == img.URL
}

func listingAction(id, action string) templ.SafeURL {
	return templ.SafeURL("/admin/listings/" + url.PathEscape(id) + "/" + action)
}

func draftAction(id, action string) templ.SafeURL {
	return templ.SafeURL("/admin/drafts/" + url.PathEscape(id) + "/" + action)
}

// imageAction is a datastar expression posting to one of the draft image
// endpoints.
func imageAction(draftID, action, imageURL string) string {
	return "@post('/admin/drafts/" + url.PathEscape(draftID) + "/images/" + action + "?url=" + url.QueryEscape(imageURL) + "')"
}
