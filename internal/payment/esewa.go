package payment

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jcmexdev/storefront-core/internal/checkout"
	"github.com/jcmexdev/storefront-core/internal/order"
)

var _ RedirectCapture = (*Esewa)(nil)

// Esewa is the redirect-capture integration: the caller hands the widget
// parameters to the eSewa form, the shopper pays on the gateway's page,
// and the gateway calls back with a reference and the captured amount.
type Esewa struct {
	merchantCode string
	successURL   string
	failureURL   string
}

func NewEsewa(merchantCode, successURL, failureURL string) *Esewa {
	return &Esewa{
		merchantCode: merchantCode,
		successURL:   successURL,
		failureURL:   failureURL,
	}
}

func (e *Esewa) Method() string { return checkout.MethodEsewa }

// RedirectParams builds the form fields the eSewa ePay widget expects.
// Shipping and tax are itemised because the gateway verifies that the
// component fields sum to tAmt.
func (e *Esewa) RedirectParams(o *order.Order) (map[string]string, error) {
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}
	return map[string]string{
		"amt":   formatAmount(o.ItemsTotal),
		"txAmt": formatAmount(o.TaxAmount),
		"psc":   formatAmount(o.ShippingCost),
		"pdc":   "0",
		"tAmt":  formatAmount(o.GrandTotal),
		"pid":   o.ID,
		"scd":   e.merchantCode,
		"su":    e.successURL,
		"fu":    e.failureURL,
	}, nil
}

// esewaCallback is the payload eSewa posts to the success URL.
type esewaCallback struct {
	RefID   string `json:"refId"`
	OrderID string `json:"oid"`
	Amount  string `json:"amt"`
}

func (e *Esewa) ParseCallback(o *order.Order, payload []byte) (order.PaymentResult, error) {
	var cb esewaCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return order.PaymentResult{}, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if cb.RefID == "" {
		return order.PaymentResult{}, fmt.Errorf("%w: missing refId", ErrMalformedProof)
	}
	if cb.OrderID != o.ID {
		return order.PaymentResult{}, fmt.Errorf("%w: callback for order %q, expected %q",
			ErrMalformedProof, cb.OrderID, o.ID)
	}

	amount, err := strconv.ParseFloat(cb.Amount, 64)
	if err != nil {
		return order.PaymentResult{}, fmt.Errorf("%w: amount %q", ErrMalformedProof, cb.Amount)
	}

	return order.PaymentResult{
		Provider:  e.Method(),
		Reference: cb.RefID,
		Status:    "COMPLETE",
		Amount:    amount,
		Payload:   json.RawMessage(payload),
	}, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
