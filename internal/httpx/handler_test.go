package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/checkout"
	"github.com/jcmexdev/storefront-core/internal/order"
	"github.com/jcmexdev/storefront-core/internal/payment"
	"github.com/jcmexdev/storefront-core/internal/pricing"
	"github.com/jcmexdev/storefront-core/internal/stock"
)

var testRules = pricing.Rules{
	FreeShippingThreshold: 10000,
	FlatShippingFee:       250,
	TaxRate:               0.05,
}

type env struct {
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithGateways(t,
		payment.NewPayPal("client-test"),
		payment.NewEsewa("EPAYTEST", "https://shop.test/ok", "https://shop.test/fail"),
		payment.NewCash(),
	)
}

func newEnvWithGateways(t *testing.T, gateways ...payment.Gateway) *env {
	t.Helper()

	ledger := cart.NewLedger(cart.NewMemoryStore(), stock.NewFakeOracle(map[string]int{
		"prod_1": 15,
		"prod_2": 10,
		"prod_3": 0,
	}))
	lifecycle := order.NewLifecycle(order.NewMemoryStore(), ledger, testRules)

	srv := httptest.NewServer(NewRouter(NewHandler(ledger, lifecycle, payment.NewRegistry(gateways...), testRules)))
	t.Cleanup(srv.Close)
	return &env{srv: srv}
}

type identity struct {
	principal string
	admin     bool
	cartToken string
	session   string
}

var shopper = identity{principal: "u1", cartToken: "tok-1"}
var admin = identity{principal: "boss", admin: true}

// do issues a request and decodes the JSON response into out (if non-nil).
func (e *env) do(t *testing.T, id identity, method, path, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if id.principal != "" {
		req.Header.Set(HeaderPrincipalID, id.principal)
	}
	if id.admin {
		req.Header.Set(HeaderPrincipalAdmin, "true")
	}
	if id.cartToken != "" {
		req.Header.Set(HeaderCartToken, id.cartToken)
	}
	if id.session != "" {
		req.Header.Set(HeaderCheckoutSession, id.session)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return res.StatusCode
}

// walkToReady drives the cart through add, address, and method.
func (e *env) walkToReady(t *testing.T, id identity, method string) {
	t.Helper()

	if code := e.do(t, id, http.MethodPost, "/cart/items",
		`{"product_id":"prod_1","name":"Camera","unit_price":100.00,"quantity":2}`, nil); code != http.StatusOK {
		t.Fatalf("add prod_1: status %d", code)
	}
	if code := e.do(t, id, http.MethodPost, "/cart/items",
		`{"product_id":"prod_2","name":"Lens","unit_price":250.50,"quantity":1}`, nil); code != http.StatusOK {
		t.Fatalf("add prod_2: status %d", code)
	}
	if code := e.do(t, id, http.MethodPut, "/checkout/shipping-address",
		`{"full_name":"Asha Rai","address":"1 Main St","city":"Kathmandu","postal_code":"44600","country":"Nepal"}`, nil); code != http.StatusOK {
		t.Fatalf("shipping address: status %d", code)
	}
	if code := e.do(t, id, http.MethodPut, "/checkout/payment-method",
		fmt.Sprintf(`{"method":%q}`, method), nil); code != http.StatusOK {
		t.Fatalf("payment method: status %d", code)
	}
}

func TestCartRequiresToken(t *testing.T) {
	e := newEnv(t)

	var errRes ErrorResponse
	code := e.do(t, identity{principal: "u1"}, http.MethodGet, "/cart", "", &errRes)
	if code != http.StatusBadRequest || errRes.Error != "cart_token_required" {
		t.Fatalf("status %d, error %q", code, errRes.Error)
	}
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)

	var c CartResponse
	code := e.do(t, shopper, http.MethodPost, "/cart/items",
		`{"product_id":"prod_1","name":"Camera","unit_price":100,"quantity":2}`, &c)
	if code != http.StatusOK {
		t.Fatalf("add item: status %d", code)
	}
	if c.ItemCount != 2 || c.CheckoutState != string(checkout.StateNeedsShippingAddress) {
		t.Errorf("cart = %+v", c)
	}
	if c.Quote == nil || c.Quote.ItemsTotal != 200 {
		t.Errorf("quote = %+v", c.Quote)
	}

	// Replace, not increment.
	code = e.do(t, shopper, http.MethodPost, "/cart/items",
		`{"product_id":"prod_1","name":"Camera","unit_price":100,"quantity":3}`, &c)
	if code != http.StatusOK || c.ItemCount != 3 {
		t.Fatalf("re-add: status %d, count %d", code, c.ItemCount)
	}

	code = e.do(t, shopper, http.MethodPut, "/cart/items/prod_1", `{"quantity":1}`, &c)
	if code != http.StatusOK || c.ItemCount != 1 {
		t.Fatalf("set quantity: status %d, count %d", code, c.ItemCount)
	}

	code = e.do(t, shopper, http.MethodDelete, "/cart/items/prod_1", "", &c)
	if code != http.StatusOK || c.ItemCount != 0 {
		t.Fatalf("remove: status %d, count %d", code, c.ItemCount)
	}
}

func TestCartGuardStatuses(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			"sold out product", http.MethodPost, "/cart/items",
			`{"product_id":"prod_3","name":"Tripod","unit_price":30,"quantity":1}`,
			http.StatusConflict, "out_of_stock",
		},
		{
			"quantity above stock", http.MethodPost, "/cart/items",
			`{"product_id":"prod_2","name":"Lens","unit_price":250.50,"quantity":11}`,
			http.StatusConflict, "out_of_stock",
		},
		{
			"unknown product fails closed", http.MethodPost, "/cart/items",
			`{"product_id":"ghost","name":"?","unit_price":1,"quantity":1}`,
			http.StatusConflict, "out_of_stock",
		},
		{
			"zero quantity", http.MethodPost, "/cart/items",
			`{"product_id":"prod_1","name":"Camera","unit_price":100,"quantity":0}`,
			http.StatusBadRequest, "invalid_item",
		},
		{
			"malformed json", http.MethodPost, "/cart/items",
			`{"product_id":`,
			http.StatusBadRequest, "invalid_json",
		},
		{
			"incomplete address", http.MethodPut, "/checkout/shipping-address",
			`{"full_name":"Asha Rai","city":"Kathmandu"}`,
			http.StatusBadRequest, "incomplete_address",
		},
		{
			"payment method before address", http.MethodPut, "/checkout/payment-method",
			`{"method":"PayPal"}`,
			http.StatusUnprocessableEntity, "prerequisite_missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errRes ErrorResponse
			code := e.do(t, shopper, tt.method, tt.path, tt.body, &errRes)
			if code != tt.wantStatus || errRes.Error != tt.wantCode {
				t.Errorf("status %d error %q, want %d %q", code, errRes.Error, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestUnknownPaymentMethodRejected(t *testing.T) {
	e := newEnv(t)
	e.do(t, shopper, http.MethodPut, "/checkout/shipping-address",
		`{"full_name":"A","address":"B","city":"C","postal_code":"D","country":"E"}`, nil)

	var errRes ErrorResponse
	code := e.do(t, shopper, http.MethodPut, "/checkout/payment-method", `{"method":"Bitcoin"}`, &errRes)
	if code != http.StatusUnprocessableEntity || errRes.Error != "invalid_payment_method" {
		t.Fatalf("status %d, error %q", code, errRes.Error)
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodPayPal)

	id := shopper
	id.session = "sess-1"

	var o OrderResponse
	code := e.do(t, id, http.MethodPost, "/orders/", "", &o)
	if code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}
	if o.ItemsTotal != 450.50 || o.ShippingCost != 250 || o.TaxAmount != 22.53 || o.GrandTotal != 723.03 {
		t.Errorf("totals = %+v", o)
	}
	if o.Status != string(order.StatusCreated) || o.IsPaid {
		t.Errorf("fresh order state = %+v", o)
	}

	// Placement cleared the cart, and the cleared cart does not claim to be
	// ready for another placement.
	var c CartResponse
	if code := e.do(t, shopper, http.MethodGet, "/cart", "", &c); code != http.StatusOK || c.ItemCount != 0 {
		t.Errorf("cart after placement: status %d, count %d", code, c.ItemCount)
	}
	if c.CheckoutState != string(checkout.StateNeedsShippingAddress) {
		t.Errorf("checkout state after placement = %q", c.CheckoutState)
	}

	// Same session replays the same order instead of double-charging.
	var dup OrderResponse
	if code := e.do(t, id, http.MethodPost, "/orders/", "", &dup); code != http.StatusCreated {
		t.Fatalf("replayed place: status %d", code)
	}
	if dup.ID != o.ID {
		t.Errorf("replay created a second order: %s vs %s", dup.ID, o.ID)
	}
}

func TestPlaceOrderGuards(t *testing.T) {
	e := newEnv(t)

	t.Run("empty cart", func(t *testing.T) {
		var errRes ErrorResponse
		code := e.do(t, shopper, http.MethodPost, "/orders/", "", &errRes)
		if code != http.StatusUnprocessableEntity || errRes.Error != "empty_cart" {
			t.Fatalf("status %d, error %q", code, errRes.Error)
		}
	})

	t.Run("anonymous shopper", func(t *testing.T) {
		e.walkToReady(t, shopper, checkout.MethodCash)
		anon := identity{cartToken: shopper.cartToken}
		var errRes ErrorResponse
		code := e.do(t, anon, http.MethodPost, "/orders/", "", &errRes)
		if code != http.StatusForbidden || errRes.Error != "unauthorized" {
			t.Fatalf("status %d, error %q", code, errRes.Error)
		}
	})
}

func TestPayPalCaptureOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodPayPal)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	var cfg PaymentConfigResponse
	if code := e.do(t, shopper, http.MethodGet, "/orders/"+o.ID+"/payment-config", "", &cfg); code != http.StatusOK {
		t.Fatalf("payment config: status %d", code)
	}
	if cfg.Method != checkout.MethodPayPal || cfg.ClientID != "client-test" || cfg.IntentToken == "" {
		t.Errorf("config = %+v", cfg)
	}

	proof := `{
		"id": "CAP-1", "status": "COMPLETED",
		"payer": {"email_address": "asha@example.com"},
		"purchase_units": [{"amount": {"value": "723.03"}}]
	}`

	var paid OrderResponse
	if code := e.do(t, shopper, http.MethodPut, "/orders/"+o.ID+"/pay", proof, &paid); code != http.StatusOK {
		t.Fatalf("pay: status %d", code)
	}
	if !paid.IsPaid || paid.PaidAt == nil || paid.Status != string(order.StatusPaid) {
		t.Errorf("paid order = %+v", paid)
	}

	// Retried proof submission is a success no-op.
	var again OrderResponse
	if code := e.do(t, shopper, http.MethodPut, "/orders/"+o.ID+"/pay", proof, &again); code != http.StatusOK {
		t.Fatalf("replayed pay: status %d", code)
	}
	if !again.IsPaid {
		t.Errorf("replay lost paid state: %+v", again)
	}

	t.Run("amount mismatch", func(t *testing.T) {
		e2 := newEnv(t)
		e2.walkToReady(t, shopper, checkout.MethodPayPal)
		var o2 OrderResponse
		if code := e2.do(t, shopper, http.MethodPost, "/orders/", "", &o2); code != http.StatusCreated {
			t.Fatal("place order failed")
		}

		short := `{"id":"CAP-2","status":"COMPLETED","purchase_units":[{"amount":{"value":"1.00"}}]}`
		var errRes ErrorResponse
		code := e2.do(t, shopper, http.MethodPut, "/orders/"+o2.ID+"/pay", short, &errRes)
		if code != http.StatusConflict || errRes.Error != "payment_amount_mismatch" {
			t.Fatalf("status %d, error %q", code, errRes.Error)
		}
	})

	t.Run("incomplete capture", func(t *testing.T) {
		e2 := newEnv(t)
		e2.walkToReady(t, shopper, checkout.MethodPayPal)
		var o2 OrderResponse
		if code := e2.do(t, shopper, http.MethodPost, "/orders/", "", &o2); code != http.StatusCreated {
			t.Fatal("place order failed")
		}

		pending := `{"id":"CAP-3","status":"PENDING","purchase_units":[{"amount":{"value":"723.03"}}]}`
		var errRes ErrorResponse
		code := e2.do(t, shopper, http.MethodPut, "/orders/"+o2.ID+"/pay", pending, &errRes)
		if code != http.StatusUnprocessableEntity || errRes.Error != "capture_incomplete" {
			t.Fatalf("status %d, error %q", code, errRes.Error)
		}
	})
}

// crossWiredGateway is registered under PayPal but reports captures as
// coming from Esewa, simulating a miswired integration.
type crossWiredGateway struct{}

func (crossWiredGateway) Method() string { return checkout.MethodPayPal }

func (crossWiredGateway) CreateIntent(o *order.Order) (string, error) { return "intent", nil }

func (crossWiredGateway) VerifyProof(o *order.Order, proof json.RawMessage) (order.PaymentResult, error) {
	return order.PaymentResult{
		Provider:  checkout.MethodEsewa,
		Reference: "CAP-X",
		Status:    "COMPLETED",
		Amount:    o.GrandTotal,
	}, nil
}

// A capture whose provider does not match the order's payment method is
// rejected even when the adapter itself accepted the proof.
func TestPayRejectsForeignProvider(t *testing.T) {
	e := newEnvWithGateways(t, crossWiredGateway{}, payment.NewCash())
	e.walkToReady(t, shopper, checkout.MethodPayPal)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	var errRes ErrorResponse
	code := e.do(t, shopper, http.MethodPut, "/orders/"+o.ID+"/pay", `{}`, &errRes)
	if code != http.StatusUnprocessableEntity || errRes.Error != "invalid_payment_method" {
		t.Fatalf("status %d, error %q, want 422 invalid_payment_method", code, errRes.Error)
	}

	var after OrderResponse
	if code := e.do(t, shopper, http.MethodGet, "/orders/"+o.ID, "", &after); code != http.StatusOK {
		t.Fatal("fetch after rejected pay failed")
	}
	if after.IsPaid {
		t.Errorf("foreign-provider capture marked the order paid: %+v", after)
	}
}

func TestEsewaCallbackOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodEsewa)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	var cfg PaymentConfigResponse
	if code := e.do(t, shopper, http.MethodGet, "/orders/"+o.ID+"/payment-config", "", &cfg); code != http.StatusOK {
		t.Fatalf("payment config: status %d", code)
	}
	if cfg.RedirectParams["tAmt"] != "723.03" || cfg.RedirectParams["pid"] != o.ID {
		t.Errorf("redirect params = %+v", cfg.RedirectParams)
	}

	// The gateway callback carries no principal headers at all.
	callback := fmt.Sprintf(`{"refId":"000AE01","oid":%q,"amt":"723.03"}`, o.ID)
	var paid OrderResponse
	if code := e.do(t, identity{}, http.MethodPost, "/orders/"+o.ID+"/callback", callback, &paid); code != http.StatusOK {
		t.Fatalf("callback: status %d", code)
	}
	if !paid.IsPaid {
		t.Errorf("callback did not record payment: %+v", paid)
	}

	t.Run("tampered callback", func(t *testing.T) {
		bad := `{"refId":"000AE02","oid":"someone-elses-order","amt":"723.03"}`
		var errRes ErrorResponse
		code := e.do(t, identity{}, http.MethodPost, "/orders/"+o.ID+"/callback", bad, &errRes)
		if code != http.StatusBadRequest || errRes.Error != "malformed_proof" {
			t.Fatalf("status %d, error %q", code, errRes.Error)
		}
	})
}

func TestCashSettlementOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodCash)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	// The shopper cannot self-settle a COD order.
	var errRes ErrorResponse
	code := e.do(t, shopper, http.MethodPut, "/orders/"+o.ID+"/pay", "", &errRes)
	if code != http.StatusForbidden {
		t.Fatalf("shopper settle: status %d", code)
	}

	var paid OrderResponse
	if code := e.do(t, admin, http.MethodPut, "/orders/"+o.ID+"/pay", "", &paid); code != http.StatusOK {
		t.Fatalf("admin settle: status %d", code)
	}
	if !paid.IsPaid {
		t.Errorf("settled order = %+v", paid)
	}
}

func TestDeliveryOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodCash)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	var errRes ErrorResponse
	if code := e.do(t, shopper, http.MethodPut, "/orders/"+o.ID+"/deliver", "", &errRes); code != http.StatusForbidden {
		t.Fatalf("shopper deliver: status %d", code)
	}
	if code := e.do(t, admin, http.MethodPut, "/orders/"+o.ID+"/deliver", "", &errRes); code != http.StatusConflict {
		t.Fatalf("unpaid deliver: status %d, want conflict", code)
	}

	if code := e.do(t, admin, http.MethodPut, "/orders/"+o.ID+"/pay", "", nil); code != http.StatusOK {
		t.Fatal("settle failed")
	}

	var delivered OrderResponse
	if code := e.do(t, admin, http.MethodPut, "/orders/"+o.ID+"/deliver", "", &delivered); code != http.StatusOK {
		t.Fatalf("deliver: status %d", code)
	}
	if delivered.Status != string(order.StatusDelivered) || delivered.DeliveredAt == nil {
		t.Errorf("delivered order = %+v", delivered)
	}
}

func TestOrderVisibility(t *testing.T) {
	e := newEnv(t)
	e.walkToReady(t, shopper, checkout.MethodCash)

	var o OrderResponse
	if code := e.do(t, shopper, http.MethodPost, "/orders/", "", &o); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}

	tests := []struct {
		name string
		id   identity
		want int
	}{
		{"owner", shopper, http.StatusOK},
		{"admin", admin, http.StatusOK},
		{"stranger", identity{principal: "u2"}, http.StatusForbidden},
		{"unknown order 404", shopper, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/orders/" + o.ID
			if tt.want == http.StatusNotFound {
				path = "/orders/nope"
			}
			if code := e.do(t, tt.id, http.MethodGet, path, "", nil); code != tt.want {
				t.Errorf("status %d, want %d", code, tt.want)
			}
		})
	}

	t.Run("history is scoped", func(t *testing.T) {
		var mine []OrderResponse
		if code := e.do(t, shopper, http.MethodGet, "/orders/", "", &mine); code != http.StatusOK {
			t.Fatalf("list: status %d", code)
		}
		if len(mine) != 1 {
			t.Errorf("owner history length = %d, want 1", len(mine))
		}

		var theirs []OrderResponse
		if code := e.do(t, identity{principal: "u2"}, http.MethodGet, "/orders/", "", &theirs); code != http.StatusOK {
			t.Fatalf("stranger list: status %d", code)
		}
		if len(theirs) != 0 {
			t.Errorf("stranger sees %d orders", len(theirs))
		}
	})
}
