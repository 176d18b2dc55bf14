package domain

import (
	"context"
	"time"
)

type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "casa"
	PropertyTypeApartment  PropertyType = "departamento"
	PropertyTypeLand       PropertyType = "terreno"
	PropertyTypeCommercial PropertyType = "local"
	PropertyTypeOffice     PropertyType = "oficina"
	PropertyTypeOther      PropertyType = "otro"
)

// PropertyTypes lists the property types in display order.
var PropertyTypes = []PropertyType{
	PropertyTypeHouse, PropertyTypeApartment, PropertyTypeLand,
	PropertyTypeCommercial, PropertyTypeOffice, PropertyTypeOther,
}

func (t PropertyType) Valid() bool {
	for _, v := range PropertyTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Operation string

const (
	OperationSale   Operation = "venta"
	OperationRental Operation = "alquiler"
)

func (o Operation) Valid() bool {
	return o == OperationSale || o == OperationRental
}

// Label returns the capitalized operation name shown on cards.
func (o Operation) Label() string {
	if o == OperationSale {
		return "Venta"
	}
	return "Alquiler"
}

type ListingStatus string

const (
	StatusActive  ListingStatus = "activa"
	StatusPaused  ListingStatus = "pausada"
	StatusDeleted ListingStatus = "eliminada"
)

func (s ListingStatus) Valid() bool {
	return s == StatusActive || s == StatusPaused || s == StatusDeleted
}

// Listing is a persisted property listing.
type Listing struct {
	ID           string
	Title        string
	Description  *string
	Price        float64
	Address      string
	Type         PropertyType
	Operation    Operation
	Status       ListingStatus
	Bedrooms     *int
	Bathrooms    *int
	SurfaceArea  *float64 // m²
	PrimaryImage *string
	Images       []string
	Featured     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListingFilter narrows a listing query. Zero-valued fields do not constrain.
type ListingFilter struct {
	Type         PropertyType
	Operation    Operation
	Status       ListingStatus
	MaxPrice     float64
	FeaturedOnly bool
}

// IsZero reports whether the filter has no constraints.
func (f ListingFilter) IsZero() bool {
	return f == ListingFilter{}
}

// Matches reports whether l satisfies every constraint of f.
func (f ListingFilter) Matches(l *Listing) bool {
	if f.Type != "" && l.Type != f.Type {
		return false
	}
	if f.Operation != "" && l.Operation != f.Operation {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.MaxPrice > 0 && l.Price > f.MaxPrice {
		return false
	}
	if f.FeaturedOnly && !l.Featured {
		return false
	}
	return true
}

// ListingRepository persists listings. List returns rows ordered by
// creation time, newest first.
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	Update(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, id string) (*Listing, error)
	List(ctx context.Context, filter ListingFilter) ([]Listing, error)
	UpdateStatus(ctx context.Context, id string, status ListingStatus) error
	SetFeatured(ctx context.Context, id string, featured bool) error
}

// ListingCache is a read-through cache for public listing pages.
// Get returns (nil, nil) on a miss.
type ListingCache interface {
	Get(ctx context.Context, id string) (*Listing, error)
	Set(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id string) error
}

// ListingEvent is published after a listing changes.
type ListingEvent struct {
	Type      string        `json:"type"`
	ListingID string        `json:"listing_id"`
	Status    ListingStatus `json:"status,omitempty"`
	Featured  *bool         `json:"featured,omitempty"`
	At        time.Time     `json:"at"`
}

const (
	EventListingCreated       = "listings.created"
	EventListingUpdated       = "listings.updated"
	EventListingStatusChanged = "listings.status"
	EventListingFeatured      = "listings.featured"
)

// EventPublisher delivers listing events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event ListingEvent) error
}
