// Package pricing computes the price breakdown for a cart snapshot. The
// quote function is pure: identical inputs always produce identical quotes,
// and nothing here touches storage or the clock.
package pricing

import (
	"errors"
	"math"

	"github.com/jcmexdev/storefront-core/internal/cart"
)

// ErrEmptyCart is returned when a quote is requested for zero line items.
// Checkout never proceeds to pricing on an empty cart.
var ErrEmptyCart = errors.New("pricing: cart has no items")

// Rules are the deployment-specific pricing inputs. Different storefronts
// run with materially different thresholds and fees, so none of these are
// constants.
type Rules struct {
	// FreeShippingThreshold: orders whose items total strictly exceeds
	// this ship free.
	FreeShippingThreshold float64

	// FlatShippingFee applies to every order at or below the threshold.
	FlatShippingFee float64

	// TaxRate is applied to the items total, e.g. 0.05 for 5%.
	TaxRate float64
}

// Quote is the derived price breakdown. It is never stored independently of
// the snapshot that produced it; orders copy these fields at placement.
type Quote struct {
	ItemsTotal   float64 `json:"items_total"`
	ShippingCost float64 `json:"shipping_cost"`
	TaxAmount    float64 `json:"tax_amount"`
	GrandTotal   float64 `json:"grand_total"`
}

// Compute prices the cart under the given rules.
//
// Rounding is half-up to 2 decimals and applied independently to the items
// total, the tax amount and the grand total. Rounding only once at the end
// disagrees with this on boundary values (e.g. tax on 450.50 at 5% is
// 22.525, which must round to 22.53 before summing).
func Compute(c cart.Cart, rules Rules) (Quote, error) {
	if c.Empty() {
		return Quote{}, ErrEmptyCart
	}

	items := 0.0
	for _, it := range c.Items {
		items += it.UnitPrice * float64(it.Quantity)
	}
	items = Round2(items)

	shipping := rules.FlatShippingFee
	if items > rules.FreeShippingThreshold {
		shipping = 0
	}

	tax := Round2(items * rules.TaxRate)
	grand := Round2(items + shipping + tax)

	return Quote{
		ItemsTotal:   items,
		ShippingCost: shipping,
		TaxAmount:    tax,
		GrandTotal:   grand,
	}, nil
}

// Consistent reports whether the quote satisfies its own invariant:
// grand total equals the rounded sum of its components.
func (q Quote) Consistent() bool {
	return q.GrandTotal == Round2(q.ItemsTotal+q.ShippingCost+q.TaxAmount)
}

// Round2 rounds half-up to 2 decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
