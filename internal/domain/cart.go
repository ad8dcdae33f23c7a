package domain

import "time"

// CartLineItem is a weak reference to a product plus a positive quantity.
type CartLineItem struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=2147483647"`
}

// Cart holds at most one line per distinct product, in insertion order.
type Cart struct {
	ID        string         `json:"id"`
	Lines     []CartLineItem `json:"products"`
	Version   int            `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ResolvedLineItem is a line item whose product reference was expanded.
// Product is nil when the reference dangles.
type ResolvedLineItem struct {
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
}

// FindLine returns the index of the line for productID, or -1.
func (c *Cart) FindLine(productID string) int {
	for i := range c.Lines {
		if SameID(c.Lines[i].ProductID, productID) {
			return i
		}
	}
	return -1
}

// LineProductIDs returns the product ids referenced by the cart, in line order
func (c *Cart) LineProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// CloneLines returns a copy of lines that never aliases the input and is never nil.
func CloneLines(lines []CartLineItem) []CartLineItem {
	out := make([]CartLineItem, len(lines))
	copy(out, lines)
	return out
}
