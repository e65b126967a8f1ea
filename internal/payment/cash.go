package payment

import (
	"github.com/jcmexdev/storefront-core/internal/checkout"
	"github.com/jcmexdev/storefront-core/internal/order"
)

var _ Gateway = (*Cash)(nil)

// Cash is cash-on-delivery. It has no capture flow at all; an admin records
// the payment manually once the money changes hands, through the same
// RecordPayment path as the real gateways so idempotency and auditing hold
// uniformly.
type Cash struct{}

func NewCash() *Cash { return &Cash{} }

func (c *Cash) Method() string { return checkout.MethodCash }

// ManualResult builds the result an admin records for a settled COD order.
// The amount is the order's own grand total, so the lifecycle's amount
// check passes by construction.
func (c *Cash) ManualResult(o *order.Order, adminID string) order.PaymentResult {
	return order.PaymentResult{
		Provider:  c.Method(),
		Reference: "cod:" + o.ID,
		Status:    "COLLECTED",
		Amount:    o.GrandTotal,
		PayerInfo: adminID,
	}
}
