// Package cart implements the shopper-side ledger of selected products.
//
// A Cart is ephemeral and single-owner: it lives under a client-held token
// until the order is placed, at which point its contents are deep-copied
// into an immutable order snapshot and the ledger is cleared.
package cart

import "errors"

var (
	// ErrOutOfStock is returned when the stock oracle reports fewer units
	// than the requested quantity, or when the stock check itself fails.
	// Stock checks fail closed: an unreachable oracle never allows an add.
	ErrOutOfStock = errors.New("cart: product out of stock")

	// ErrInvalidQuantity is returned for quantities below 1.
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than 0")

	// ErrConcurrentModification is returned after a version conflict on the
	// same cart persisted twice in a row. The first conflict is retried
	// silently inside the ledger.
	ErrConcurrentModification = errors.New("cart: concurrent modification")

	// ErrVersionConflict is the store-level signal that the cart changed
	// between read and write. Stores return it; callers outside the ledger
	// only ever see ErrConcurrentModification.
	ErrVersionConflict = errors.New("cart: version conflict")
)

// LineItem is one selected product. Name, slug, image and unit price are
// denormalized at add-time so the cart display stays stable even if the
// catalog changes during the session.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Image     string  `json:"image"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// ShippingAddress is the destination captured during checkout. All fields
// are required before the payment step becomes reachable.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Complete reports whether every address field has been filled in.
func (a ShippingAddress) Complete() bool {
	return a.FullName != "" && a.Address != "" && a.City != "" &&
		a.PostalCode != "" && a.Country != ""
}

// Cart holds at most one LineItem per product, in insertion order.
// Insertion order is irrelevant for correctness but preserved for display.
type Cart struct {
	Items           []LineItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// Find returns the line item for productID and whether it exists.
func (c Cart) Find(productID string) (LineItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return LineItem{}, false
}

// Empty reports whether the cart has no line items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the total number of units across all line items.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Clone returns a deep copy. Used at order placement so the snapshot cannot
// alias the live cart slice.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}
