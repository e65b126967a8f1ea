package httpx

import (
	"time"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/order"
	"github.com/jcmexdev/storefront-core/internal/pricing"
)

type AddItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Image     string  `json:"image"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ShippingAddressRequest struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type PaymentMethodRequest struct {
	Method string `json:"method"`
}

type CartResponse struct {
	Items           []cart.LineItem      `json:"items"`
	ItemCount       int                  `json:"item_count"`
	ShippingAddress cart.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	CheckoutState   string               `json:"checkout_state"`
	Quote           *pricing.Quote       `json:"quote,omitempty"`
}

type OrderResponse struct {
	ID              string               `json:"id"`
	Status          string               `json:"status"`
	Items           []cart.LineItem      `json:"items"`
	ShippingAddress cart.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method"`
	ItemsTotal      float64              `json:"items_total"`
	ShippingCost    float64              `json:"shipping_cost"`
	TaxAmount       float64              `json:"tax_amount"`
	GrandTotal      float64              `json:"grand_total"`
	IsPaid          bool                 `json:"is_paid"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	IsDelivered     bool                 `json:"is_delivered"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// PaymentConfigResponse carries whatever the selected gateway's widget
// needs to start a capture.
type PaymentConfigResponse struct {
	Method string `json:"method"`

	// PayPal client-capture fields.
	ClientID    string `json:"client_id,omitempty"`
	IntentToken string `json:"intent_token,omitempty"`

	// Redirect-capture widget parameters, opaque to this core.
	RedirectParams map[string]string `json:"redirect_params,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		Status:          string(o.Status()),
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ItemsTotal:      o.ItemsTotal,
		ShippingCost:    o.ShippingCost,
		TaxAmount:       o.TaxAmount,
		GrandTotal:      o.GrandTotal,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
}
