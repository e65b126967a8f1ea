// Package checkout guards the ordered checkout sequence:
//
//	NeedsShippingAddress -> NeedsPaymentMethod -> ReadyToPlace -> Placed
//
// The state is derived from the cart itself rather than stored beside it,
// so every route into a step re-verifies its prerequisites. A direct API
// call cannot reach order placement with a missing address or payment
// method, no matter what the UI wizard did.
package checkout

import (
	"errors"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/pricing"
)

var (
	// ErrPrerequisiteMissing means an earlier checkout step has not been
	// completed. Recoverable: the calling surface sends the shopper back
	// to the missing step.
	ErrPrerequisiteMissing = errors.New("checkout: earlier checkout step incomplete")

	// ErrInvalidPaymentMethod means the selected method is not in the
	// supported set.
	ErrInvalidPaymentMethod = errors.New("checkout: unknown payment method")
)

// State is the sequencer position derived from a cart snapshot.
type State string

const (
	StateNeedsShippingAddress State = "NEEDS_SHIPPING_ADDRESS"
	StateNeedsPaymentMethod   State = "NEEDS_PAYMENT_METHOD"
	StateReadyToPlace         State = "READY_TO_PLACE"

	// StatePlaced is terminal for the sequencer. It is only ever entered
	// through a successful order placement, which clears the cart; a new
	// purchase starts from a fresh cart.
	StatePlaced State = "PLACED"
)

// Supported payment methods. PayPal captures client-side, Esewa captures
// through a redirect widget, Cash settles on delivery.
const (
	MethodPayPal = "PayPal"
	MethodEsewa  = "Esewa"
	MethodCash   = "Cash"
)

var methods = map[string]bool{
	MethodPayPal: true,
	MethodEsewa:  true,
	MethodCash:   true,
}

// ValidMethod reports whether m is in the supported closed set.
func ValidMethod(m string) bool {
	return methods[m]
}

// StateOf derives the sequencer state from the cart. An empty cart restarts
// the sequence: placement clears the items but keeps the address and method,
// and a cart with nothing to price is never ready to place.
func StateOf(c cart.Cart) State {
	if c.Empty() || !c.ShippingAddress.Complete() {
		return StateNeedsShippingAddress
	}
	if !ValidMethod(c.PaymentMethod) {
		return StateNeedsPaymentMethod
	}
	return StateReadyToPlace
}

// EnsureCanSelectPayment gates entry to the payment-method step: a complete
// shipping address must already be saved.
func EnsureCanSelectPayment(c cart.Cart) error {
	if !c.ShippingAddress.Complete() {
		return ErrPrerequisiteMissing
	}
	return nil
}

// ValidatePaymentMethod gates saving a method selection.
func ValidatePaymentMethod(c cart.Cart, method string) error {
	if err := EnsureCanSelectPayment(c); err != nil {
		return err
	}
	if !ValidMethod(method) {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// EnsureReadyToPlace gates order placement: non-empty cart, complete
// address, valid saved method.
func EnsureReadyToPlace(c cart.Cart) error {
	if c.Empty() {
		return pricing.ErrEmptyCart
	}
	if !c.ShippingAddress.Complete() {
		return ErrPrerequisiteMissing
	}
	if !ValidMethod(c.PaymentMethod) {
		return ErrInvalidPaymentMethod
	}
	return nil
}
