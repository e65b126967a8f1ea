package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/storefront-core/internal/stock"
)

// Ledger owns all cart mutations. Every mutation is a read-modify-write
// against the Store's version counter: a conflicting write from another
// request for the same cart is retried once, then surfaced as
// ErrConcurrentModification. Mutations touching different products commute,
// so the retry resolves the benign interleavings.
type Ledger struct {
	store  Store
	oracle stock.Oracle
}

// NewLedger wires the ledger to its persistence and the stock oracle.
func NewLedger(store Store, oracle stock.Oracle) *Ledger {
	return &Ledger{store: store, oracle: oracle}
}

// Get loads the current cart for token.
func (l *Ledger) Get(ctx context.Context, token string) (Cart, error) {
	c, _, err := l.store.Get(ctx, token)
	return c, err
}

// AddOrUpdate inserts item with the requested quantity, or replaces the
// existing quantity if the product is already in the cart. The caller is
// responsible for computing "current + 1" before calling, which keeps
// repeated identical calls idempotent.
func (l *Ledger) AddOrUpdate(ctx context.Context, token string, item LineItem, quantity int) (Cart, error) {
	if err := l.checkStock(ctx, item.ProductID, quantity); err != nil {
		return Cart{}, err
	}
	return l.mutate(ctx, token, PutItem{Item: item, Quantity: quantity})
}

// SetQuantity replaces the quantity of an existing line item. The set of
// selectable quantities is exactly 1..countInStock.
func (l *Ledger) SetQuantity(ctx context.Context, token, productID string, quantity int) (Cart, error) {
	if err := l.checkStock(ctx, productID, quantity); err != nil {
		return Cart{}, err
	}
	return l.mutate(ctx, token, SetQuantity{ProductID: productID, Quantity: quantity})
}

// Remove deletes the product's line item. Idempotent: removing an absent
// product succeeds.
func (l *Ledger) Remove(ctx context.Context, token, productID string) (Cart, error) {
	return l.mutate(ctx, token, RemoveItem{ProductID: productID})
}

// Clear empties the cart's items. Called by the order lifecycle after a
// placement commits; never exposed as a direct shopper operation.
func (l *Ledger) Clear(ctx context.Context, token string) error {
	_, err := l.mutate(ctx, token, ClearItems{})
	return err
}

// SaveShippingAddress stores the checkout destination on the cart.
func (l *Ledger) SaveShippingAddress(ctx context.Context, token string, addr ShippingAddress) (Cart, error) {
	return l.mutate(ctx, token, SetShippingAddress{Address: addr})
}

// SavePaymentMethod stores the selected payment method on the cart. Method
// validation against the closed set belongs to the checkout sequencer.
func (l *Ledger) SavePaymentMethod(ctx context.Context, token, method string) (Cart, error) {
	return l.mutate(ctx, token, SetPaymentMethod{Method: method})
}

// checkStock verifies availability before any quantity-bearing mutation.
// Oracle failures fail closed: the mutation is refused.
func (l *Ledger) checkStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	available, err := l.oracle.CountInStock(ctx, productID)
	if err != nil {
		slog.WarnContext(ctx, "stock check failed, refusing mutation",
			"product_id", productID, "error", err)
		return fmt.Errorf("%w: %v", ErrOutOfStock, err)
	}
	if available < quantity {
		return ErrOutOfStock
	}
	return nil
}

// mutate runs one read-apply-write cycle, retrying a version conflict once.
func (l *Ledger) mutate(ctx context.Context, token string, action Action) (Cart, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		current, version, err := l.store.Get(ctx, token)
		if err != nil {
			return Cart{}, err
		}

		next := Apply(current, action)

		err = l.store.Put(ctx, token, next, version)
		if err == nil {
			return next, nil
		}
		if !IsVersionConflict(err) {
			return Cart{}, err
		}
		lastErr = err
	}

	slog.WarnContext(ctx, "cart version conflict persisted after retry", "error", lastErr)
	return Cart{}, ErrConcurrentModification
}
