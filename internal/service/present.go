package service

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cordobacasas/casas/internal/domain"
)

// PlaceholderImage is shown when a listing has no images.
const PlaceholderImage = "https://via.placeholder.com/800x600?text=No+hay+imagen"

// DefaultWhatsAppNumber is the agency's contact number in international
// format without the leading plus.
const DefaultWhatsAppNumber = "5493512345678"

var pricePrinter = message.NewPrinter(language.MustParse("es-AR"))

// FilterListings returns the listings that match filter, keeping their
// order. An empty filter returns the input unchanged.
func FilterListings(listings []domain.Listing, filter domain.ListingFilter) []domain.Listing {
	if filter.IsZero() {
		return listings
	}
	out := make([]domain.Listing, 0, len(listings))
	for i := range listings {
		if filter.Matches(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	return out
}

// GalleryImages orders a listing's images for display: the primary image
// first, then the rest without repeating it.
func GalleryImages(l *domain.Listing) []string {
	var out []string
	primary := ""
	if l.PrimaryImage != nil && *l.PrimaryImage != "" {
		primary = *l.PrimaryImage
		out = append(out, primary)
	}
	for _, img := range l.Images {
		if img != primary {
			out = append(out, img)
		}
	}
	if len(out) == 0 {
		return []string{PlaceholderImage}
	}
	return slices.Clip(out)
}

// FormatPrice renders a price in Argentine pesos without decimals, e.g.
// "$ 1.500.000".
func FormatPrice(price float64) string {
	return "$ " + pricePrinter.Sprintf("%d", int64(math.Round(price)))
}

// WhatsAppLink returns a wa.me link with a prefilled inquiry about l.
func WhatsAppLink(number string, l *domain.Listing) string {
	if number == "" {
		number = DefaultWhatsAppNumber
	}
	text := fmt.Sprintf(`Hola, estoy interesado/a en la propiedad "%s" (%s) publicada en Córdoba Casas. ¿Podrían brindarme más información?`,
		l.Title, l.Operation)
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
