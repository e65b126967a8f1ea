// Package payment defines the gateway contract this core plugs concrete
// integrations into.
//
// Two capture shapes exist in the wild and both are supported:
//
//   - client capture: the shopper's browser talks to the gateway, then
//     posts a proof object in the same request that asks us to record the
//     payment (PayPal buttons).
//   - redirect capture: we hand the caller opaque widget parameters, the
//     gateway calls back out-of-band with a payload (eSewa).
//
// Both variants converge on a verified order.PaymentResult fed into
// Lifecycle.RecordPayment, which is what lets the order lifecycle stay
// gateway-agnostic.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jcmexdev/storefront-core/internal/order"
)

var (
	// ErrMalformedProof means the capture proof or callback payload did
	// not have the shape the gateway documents. Nothing is recorded.
	ErrMalformedProof = errors.New("payment: malformed capture proof")

	// ErrCaptureIncomplete means the payload parsed but does not represent
	// a completed capture (e.g. a pending or voided PayPal order).
	ErrCaptureIncomplete = errors.New("payment: capture not completed")
)

// Gateway is the minimal contract every integration satisfies.
type Gateway interface {
	// Method returns the payment-method name shoppers select during
	// checkout, e.g. "PayPal".
	Method() string
}

// ClientCapture is the capability set for gateways whose capture happens
// in the shopper's client.
type ClientCapture interface {
	Gateway

	// CreateIntent returns an opaque token the client hands to the
	// gateway widget when starting a capture for the order.
	CreateIntent(o *order.Order) (string, error)

	// VerifyProof checks the client-supplied proof is well-formed and
	// represents a completed capture, returning the normalized result.
	// The amount in the result comes from the proof, not from the client
	// request, so the lifecycle can check it against the grand total.
	VerifyProof(o *order.Order, proof json.RawMessage) (order.PaymentResult, error)
}

// RedirectCapture is the capability set for gateways whose capture happens
// through an external widget plus an out-of-band callback.
type RedirectCapture interface {
	Gateway

	// RedirectParams returns the opaque configuration the caller hands to
	// the gateway widget.
	RedirectParams(o *order.Order) (map[string]string, error)

	// ParseCallback validates the gateway's callback payload and returns
	// the normalized result.
	ParseCallback(o *order.Order, payload []byte) (order.PaymentResult, error)
}

// Registry holds the configured gateways, keyed by method name.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds a registry. Duplicate method names are a programming
// error and panic at startup.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		if _, dup := r.gateways[g.Method()]; dup {
			panic(fmt.Sprintf("payment: duplicate gateway %q", g.Method()))
		}
		r.gateways[g.Method()] = g
	}
	return r
}

// Lookup returns the gateway for method, or false.
func (r *Registry) Lookup(method string) (Gateway, bool) {
	g, ok := r.gateways[method]
	return g, ok
}

// ClientCaptureFor returns the client-capture capability for method, or
// false if the gateway does not capture client-side.
func (r *Registry) ClientCaptureFor(method string) (ClientCapture, bool) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, false
	}
	cc, ok := g.(ClientCapture)
	return cc, ok
}

// RedirectCaptureFor returns the redirect-capture capability for method,
// or false if the gateway does not capture via redirect.
func (r *Registry) RedirectCaptureFor(method string) (RedirectCapture, bool) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, false
	}
	rc, ok := g.(RedirectCapture)
	return rc, ok
}
