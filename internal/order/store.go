package order

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicatePlacement is the store-level signal that an order with the
// same placement key already exists. The lifecycle resolves it to the
// existing order rather than surfacing it.
var ErrDuplicatePlacement = errors.New("order: placement key already used")

// Store is the port for durable order persistence. State-changing writes
// are conditional: they apply only if the order is currently in the
// expected state, so concurrent writers (a gateway callback and an admin
// delivery action) can never blindly overwrite each other.
type Store interface {
	// Create persists a new order in state Created. A placement-key
	// collision returns ErrDuplicatePlacement and writes nothing.
	Create(ctx context.Context, o *Order) error

	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)

	// GetByPlacementKey returns the order created under key, or
	// ErrNotFound.
	GetByPlacementKey(ctx context.Context, key string) (*Order, error)

	// ListByPrincipal returns the principal's orders, newest first.
	ListByPrincipal(ctx context.Context, principalID string) ([]*Order, error)

	// ListAll returns every order, newest first. Admin surface only.
	ListAll(ctx context.Context) ([]*Order, error)

	// MarkPaid flips the order to paid and appends the result to the
	// payment audit trail, only if it is not already paid. Returns
	// ErrAlreadyPaid otherwise; the audit trail gains no duplicate entry.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, result PaymentResult) error

	// MarkDelivered flips the order to delivered, only if it is paid and
	// not yet delivered. Returns ErrInvalidTransition otherwise.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
}
