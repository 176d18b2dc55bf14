package domain

import (
	"fmt"
	"slices"
	"strings"
)

// DraftFields are the scalar, form-editable attributes of a listing.
type DraftFields struct {
	Title       string
	Description *string
	Price       float64
	Address     string
	Type        PropertyType
	Operation   Operation
	Bedrooms    *int
	Bathrooms   *int
	SurfaceArea *float64
	Featured    bool
}

// ListingDraft is a listing being created or edited. The zero value is an
// empty draft for a new listing.
//
// The primary image is held as a position in images, never as a separate
// value, so it is always either unset or one of the draft's images.
type ListingDraft struct {
	DraftFields

	// ListingID is empty for a new listing.
	ListingID string

	images  []StoredImage
	primary int // 1-based position in images; 0 when unset
}

// NewDraft returns an empty draft for a new listing.
func NewDraft() *ListingDraft {
	return &ListingDraft{}
}

// DraftFromListing opens a persisted listing for editing. A primary image
// that is missing from the image list is put in front of it, as the public
// gallery does.
func DraftFromListing(l *Listing) *ListingDraft {
	d := &ListingDraft{
		ListingID: l.ID,
		DraftFields: DraftFields{
			Title:       l.Title,
			Description: l.Description,
			Price:       l.Price,
			Address:     l.Address,
			Type:        l.Type,
			Operation:   l.Operation,
			Bedrooms:    l.Bedrooms,
			Bathrooms:   l.Bathrooms,
			SurfaceArea: l.SurfaceArea,
			Featured:    l.Featured,
		},
	}
	urls := l.Images
	if l.PrimaryImage != nil && *l.PrimaryImage != "" && !slices.Contains(urls, *l.PrimaryImage) {
		urls = append([]string{*l.PrimaryImage}, urls...)
	}
	for _, u := range urls {
		d.images = append(d.images, StoredImage{URL: u})
	}
	if l.PrimaryImage != nil {
		d.SetPrimary(*l.PrimaryImage)
	}
	if d.primary == 0 && len(d.images) > 0 {
		d.primary = 1
	}
	return d
}

// Images returns the draft's images in upload order.
func (d *ListingDraft) Images() []StoredImage {
	return slices.Clone(d.images)
}

// Primary returns the primary image, if one is set.
func (d *ListingDraft) Primary() (StoredImage, bool) {
	if d.primary == 0 {
		return StoredImage{}, false
	}
	return d.images[d.primary-1], true
}

// AddImages appends stored images. The first of them becomes primary when
// the draft has none.
func (d *ListingDraft) AddImages(stored ...StoredImage) {
	if len(stored) == 0 {
		return
	}
	first := len(d.images)
	d.images = append(d.images, stored...)
	if d.primary == 0 {
		d.primary = first + 1
	}
}

// SetPrimary marks the image with the given URL as primary. It reports
// false and leaves the draft unchanged when no image has that URL.
func (d *ListingDraft) SetPrimary(url string) bool {
	i := d.indexOf(url)
	if i < 0 {
		return false
	}
	d.primary = i + 1
	return true
}

// RemoveImage removes the first image with the given URL. Removing the
// primary image promotes the first remaining image, if any.
func (d *ListingDraft) RemoveImage(url string) (StoredImage, bool) {
	i := d.indexOf(url)
	if i < 0 {
		return StoredImage{}, false
	}
	removed := d.images[i]
	d.images = slices.Delete(d.images, i, i+1)

	switch {
	case d.primary == i+1:
		d.primary = 0
		if len(d.images) > 0 {
			d.primary = 1
		}
	case d.primary > i+1:
		d.primary--
	}
	return removed, true
}

// Uploaded returns images stored while this draft was open.
func (d *ListingDraft) Uploaded() []StoredImage {
	var out []StoredImage
	for _, img := range d.images {
		if img.Key != "" {
			out = append(out, img)
		}
	}
	return out
}

// Validate checks that the draft can be persisted.
func (d *ListingDraft) Validate() error {
	var problems []string
	if _, ok := d.Primary(); !ok {
		problems = append(problems, "a primary image is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(d.Address) == "" {
		problems = append(problems, "address is required")
	}
	if d.Price <= 0 {
		problems = append(problems, "price must be greater than 0")
	}
	if !d.Type.Valid() {
		problems = append(problems, "property type is required")
	}
	if !d.Operation.Valid() {
		problems = append(problems, "operation is required")
	}
	if d.Bedrooms != nil && *d.Bedrooms < 0 {
		problems = append(problems, "bedrooms cannot be negative")
	}
	if d.Bathrooms != nil && *d.Bathrooms < 0 {
		problems = append(problems, "bathrooms cannot be negative")
	}
	if d.SurfaceArea != nil && *d.SurfaceArea < 0 {
		problems = append(problems, "surface area cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ToListing builds the listing row the draft would persist. Status and
// timestamps are left for the repository.
func (d *ListingDraft) ToListing() *Listing {
	l := &Listing{
		ID:          d.ListingID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Price:       d.Price,
		Address:     strings.TrimSpace(d.Address),
		Type:        d.Type,
		Operation:   d.Operation,
		Bedrooms:    d.Bedrooms,
		Bathrooms:   d.Bathrooms,
		SurfaceArea: d.SurfaceArea,
		Featured:    d.Featured,
		Images:      make([]string, 0, len(d.images)),
	}
	for _, img := range d.images {
		l.Images = append(l.Images, img.URL)
	}
	if p, ok := d.Primary(); ok {
		url := p.URL
		l.PrimaryImage = &url
	}
	return l
}

// Clone returns a deep copy of the draft.
func (d *ListingDraft) Clone() *ListingDraft {
	c := *d
	c.images = slices.Clone(d.images)
	c.Description = clonePtr(d.Description)
	c.Bedrooms = clonePtr(d.Bedrooms)
	c.Bathrooms = clonePtr(d.Bathrooms)
	c.SurfaceArea = clonePtr(d.SurfaceArea)
	return &c
}

func (d *ListingDraft) indexOf(url string) int {
	return slices.IndexFunc(d.images, func(img StoredImage) bool { return img.URL == url })
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
