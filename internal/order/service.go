package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/checkout"
	"github.com/jcmexdev/storefront-core/internal/pricing"
)

// Lifecycle drives an order from placement through payment to delivery.
type Lifecycle struct {
	store  Store
	ledger *cart.Ledger
	rules  pricing.Rules
	now    func() time.Time
}

// NewLifecycle wires the lifecycle to the order store, the cart ledger it
// clears after placement, and the pricing rules in force.
func NewLifecycle(store Store, ledger *cart.Ledger, rules pricing.Rules) *Lifecycle {
	return &Lifecycle{
		store:  store,
		ledger: ledger,
		rules:  rules,
		now:    time.Now,
	}
}

// Create places an order from the cart held under token.
//
// The checkout guards are re-verified here, not trusted from the caller.
// The quote is computed fresh and frozen into the snapshot. Creation is
// at-most-once per (cart token, checkout session): a repeated call with the
// same pair returns the order placed the first time.
//
// The ledger is cleared only after the order commits. A crash before the
// commit leaves the cart intact for retry; a crash after it leaves a stale
// cart, which the duplicate-placement check renders harmless.
func (l *Lifecycle) Create(ctx context.Context, p Principal, token, sessionID string) (*Order, error) {
	if p.ID == "" {
		return nil, ErrUnauthorized
	}

	snapshot, err := l.ledger.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("order: load cart: %w", err)
	}
	if err := checkout.EnsureReadyToPlace(snapshot); err != nil {
		return nil, err
	}

	quote, err := pricing.Compute(snapshot, l.rules)
	if err != nil {
		return nil, err
	}
	if !quote.Consistent() {
		return nil, fmt.Errorf("order: inconsistent quote for cart %q", token)
	}

	placementKey := token + ":" + sessionID
	if existing, err := l.store.GetByPlacementKey(ctx, placementKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	snapshot = snapshot.Clone()
	now := l.now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		PrincipalID:     p.ID,
		PlacementKey:    placementKey,
		Items:           snapshot.Items,
		ShippingAddress: snapshot.ShippingAddress,
		PaymentMethod:   snapshot.PaymentMethod,
		ItemsTotal:      quote.ItemsTotal,
		ShippingCost:    quote.ShippingCost,
		TaxAmount:       quote.TaxAmount,
		GrandTotal:      quote.GrandTotal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.store.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicatePlacement) {
			// Lost the race against a concurrent create for the same
			// cart/session. Exactly one order exists; return it.
			return l.store.GetByPlacementKey(ctx, placementKey)
		}
		return nil, err
	}

	if err := l.ledger.Clear(ctx, token); err != nil {
		// The order is committed; a lingering cart is an inconvenience,
		// not a correctness problem.
		slog.WarnContext(ctx, "failed to clear cart after placement",
			"order_id", o.ID, "error", err)
	}

	slog.InfoContext(ctx, "order placed",
		"order_id", o.ID, "principal_id", p.ID, "grand_total", o.GrandTotal)
	return o, nil
}

// RecordPayment marks the order paid with a verified gateway result.
//
// This is reachable purely from external network behavior (webhooks,
// retried callbacks), so it tolerates arbitrary duplicates: the store's
// conditional write returns ErrAlreadyPaid on every call after the first,
// and callers treat that as success. The captured amount is taken from the
// gateway result, never from the client request, and must equal the frozen
// grand total.
func (l *Lifecycle) RecordPayment(ctx context.Context, orderID string, result PaymentResult, expectedGateway string) (*Order, error) {
	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentMethod != expectedGateway {
		return nil, fmt.Errorf("%w: order pays with %s, result from %s",
			checkout.ErrInvalidPaymentMethod, o.PaymentMethod, expectedGateway)
	}
	if !amountsEqual(result.Amount, o.GrandTotal) {
		return nil, fmt.Errorf("%w: captured %.2f, expected %.2f",
			ErrPaymentAmountMismatch, result.Amount, o.GrandTotal)
	}

	paidAt := l.now().UTC()
	if err := l.store.MarkPaid(ctx, orderID, paidAt, result); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "payment recorded",
		"order_id", orderID, "provider", result.Provider, "reference", result.Reference)
	return l.store.Get(ctx, orderID)
}

// RecordDelivery marks a paid order delivered. Admin only.
func (l *Lifecycle) RecordDelivery(ctx context.Context, orderID string, p Principal) (*Order, error) {
	if !p.IsAdmin {
		return nil, ErrUnauthorized
	}

	if _, err := l.store.Get(ctx, orderID); err != nil {
		return nil, err
	}

	if err := l.store.MarkDelivered(ctx, orderID, l.now().UTC()); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "delivery recorded", "order_id", orderID, "admin_id", p.ID)
	return l.store.Get(ctx, orderID)
}

// FetchForCapture returns the order without a principal check. It exists
// for gateway callbacks, which arrive with no authenticated actor; the
// protection on that path is proof verification plus the idempotent,
// amount-checked RecordPayment, not authorization.
func (l *Lifecycle) FetchForCapture(ctx context.Context, orderID string) (*Order, error) {
	return l.store.Get(ctx, orderID)
}

// Fetch returns the order if p owns it or is an admin.
func (l *Lifecycle) Fetch(ctx context.Context, orderID string, p Principal) (*Order, error) {
	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.VisibleTo(p) {
		return nil, ErrUnauthorized
	}
	return o, nil
}

// List returns the principal's order history; admins see every order.
func (l *Lifecycle) List(ctx context.Context, p Principal) ([]*Order, error) {
	if p.IsAdmin {
		return l.store.ListAll(ctx)
	}
	if p.ID == "" {
		return nil, ErrUnauthorized
	}
	return l.store.ListByPrincipal(ctx, p.ID)
}

// Rules exposes the pricing rules the lifecycle quotes with, so the HTTP
// layer can show live quotes for carts still in progress.
func (l *Lifecycle) Rules() pricing.Rules {
	return l.rules
}

// amountsEqual compares money values at cent precision, sidestepping float
// representation noise in gateway payloads.
func amountsEqual(a, b float64) bool {
	return pricing.Round2(a) == pricing.Round2(b)
}
