// Package order owns the durable order record and its lifecycle:
//
//	Created -> Paid -> Delivered
//
// Both transitions are one-directional and there is no cancellation path.
// An order snapshots its items, address, method and price breakdown at
// creation and never re-derives them, even if catalog prices or pricing
// rules change later. That stability is what distinguishes an order from
// a cart.
package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/pricing"
)

var (
	// ErrNotFound: no order with that identifier.
	ErrNotFound = errors.New("order: not found")

	// ErrAlreadyPaid: the order is already paid. Gateways deliver
	// duplicate confirmations, so callers treat this as a successful
	// no-op, not a failure.
	ErrAlreadyPaid = errors.New("order: already paid")

	// ErrPaymentAmountMismatch: the captured amount does not equal the
	// order's grand total. The order is never marked paid on a mismatch.
	ErrPaymentAmountMismatch = errors.New("order: captured amount does not match grand total")

	// ErrInvalidTransition: the requested state change is not reachable
	// from the order's current state (e.g. delivery before payment).
	ErrInvalidTransition = errors.New("order: invalid state transition")

	// ErrUnauthorized: the principal is neither the owning shopper nor an
	// admin.
	ErrUnauthorized = errors.New("order: principal not allowed")
)

// Principal is the externally authenticated actor. This core never
// authenticates; it only authorizes against this structure.
type Principal struct {
	ID      string
	IsAdmin bool
}

// Status is the derived lifecycle state.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusDelivered Status = "DELIVERED"
)

// PaymentResult is the normalized outcome of a gateway capture. Payload
// carries the gateway's raw response verbatim for audit; nothing in it is
// trusted beyond what the adapter verified.
type PaymentResult struct {
	Provider  string          `json:"provider"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    float64         `json:"amount"`
	PayerInfo string          `json:"payer_info,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Order is the immutable-at-creation purchase record. Only the fulfillment
// fields (paid/delivered) mutate, and only through guarded conditional
// writes in the store.
type Order struct {
	ID          string
	PrincipalID string

	// PlacementKey makes creation at-most-once per cart/checkout session.
	// The store enforces uniqueness; a duplicate create resolves to the
	// first order.
	PlacementKey string

	Items           []cart.LineItem
	ShippingAddress cart.ShippingAddress
	PaymentMethod   string

	ItemsTotal   float64
	ShippingCost float64
	TaxAmount    float64
	GrandTotal   float64

	IsPaid        bool
	PaidAt        *time.Time
	PaymentResult *PaymentResult

	IsDelivered bool
	DeliveredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status derives the lifecycle state from the fulfillment flags.
func (o *Order) Status() Status {
	switch {
	case o.IsDelivered:
		return StatusDelivered
	case o.IsPaid:
		return StatusPaid
	default:
		return StatusCreated
	}
}

// Quote reconstructs the price breakdown frozen into the order.
func (o *Order) Quote() pricing.Quote {
	return pricing.Quote{
		ItemsTotal:   o.ItemsTotal,
		ShippingCost: o.ShippingCost,
		TaxAmount:    o.TaxAmount,
		GrandTotal:   o.GrandTotal,
	}
}

// VisibleTo reports whether p may read this order.
func (o *Order) VisibleTo(p Principal) bool {
	return p.IsAdmin || (p.ID != "" && p.ID == o.PrincipalID)
}
