package domain

import (
	"strings"
	"time"
)

// ProductStatus is the availability marker of a catalog entry
type ProductStatus string

const (
	ProductStatusAvailable   ProductStatus = "available"
	ProductStatusUnavailable ProductStatus = "unavailable"
)

// Valid reports whether s is one of the known statuses
func (s ProductStatus) Valid() bool {
	return s == ProductStatusAvailable || s == ProductStatusUnavailable
}

// Product represents a product in the catalog
type Product struct {
	ID          string        `json:"id" bson:"-" db:"id"`
	Title       string        `json:"title" bson:"title" db:"title"`
	Description string        `json:"description" bson:"description" db:"description"`
	Code        string        `json:"code" bson:"code" db:"code"`
	Price       float64       `json:"price" bson:"price" db:"price"`
	Status      ProductStatus `json:"status" bson:"status" db:"status"`
	Stock       int           `json:"stock" bson:"stock" db:"stock"`
	Category    string        `json:"category" bson:"category" db:"category"`
	Thumbnails  []string      `json:"thumbnails" bson:"thumbnails" db:"thumbnails"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ProductFields is the mutable field set used by create and full-field update.
type ProductFields struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Code        string        `json:"code" validate:"required"`
	Price       float64       `json:"price" validate:"gte=0"`
	Status      ProductStatus `json:"status" validate:"required,oneof=available unavailable"`
	Stock       int           `json:"stock" validate:"gte=0"`
	Category    string        `json:"category"`
	Thumbnails  []string      `json:"thumbnails"`
}

// Apply copies the mutable fields onto p. The id is never touched.
func (f ProductFields) Apply(p *Product) {
	p.Title = f.Title
	p.Description = f.Description
	p.Code = f.Code
	p.Price = f.Price
	p.Status = f.Status
	p.Stock = f.Stock
	p.Category = f.Category
	p.Thumbnails = f.Thumbnails
	if p.Thumbnails == nil {
		p.Thumbnails = []string{}
	}
}

// SortDirection orders a product listing by price
type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection maps a raw query value to a direction. Unknown values
// leave the listing in storage order.
func ParseSortDirection(raw string) SortDirection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc":
		return SortAsc
	case "desc":
		return SortDesc
	default:
		return SortNone
	}
}

// ProductFilter narrows a product listing. Query is matched case-insensitively
// as a literal substring against Category or Status.
type ProductFilter struct {
	Query string
}

// Matches applies the filter in memory, for adapters that cannot push it down.
func (f ProductFilter) Matches(p *Product) bool {
	q := strings.ToLower(f.Query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Category), q) ||
		strings.Contains(strings.ToLower(string(p.Status)), q)
}

// CanonicalID normalizes an identifier so that structured store ids and plain
// request ids compare equal.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SameID reports whether two identifiers refer to the same entity
func SameID(a, b string) bool {
	return CanonicalID(a) == CanonicalID(b)
}
