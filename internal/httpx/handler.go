package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/checkout"
	"github.com/jcmexdev/storefront-core/internal/order"
	"github.com/jcmexdev/storefront-core/internal/payment"
	"github.com/jcmexdev/storefront-core/internal/pricing"
)

// Handler exposes the cart-to-order core over HTTP. It owns no business
// rules itself: guards live in the checkout package, mutations in the cart
// ledger and order lifecycle. The handler decodes, dispatches, and maps
// domain errors to status codes.
type Handler struct {
	ledger   *cart.Ledger
	orders   *order.Lifecycle
	gateways *payment.Registry
	rules    pricing.Rules
}

func NewHandler(ledger *cart.Ledger, orders *order.Lifecycle, gateways *payment.Registry, rules pricing.Rules) *Handler {
	return &Handler{
		ledger:   ledger,
		orders:   orders,
		gateways: gateways,
		rules:    rules,
	}
}

// --- Cart ---

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	c, err := h.ledger.Get(r.Context(), token)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID == "" || req.Quantity < 1 || req.UnitPrice < 0 {
		writeError(w, http.StatusBadRequest, "invalid_item",
			"product_id, a positive quantity and a non-negative unit_price are required")
		return
	}

	item := cart.LineItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		Slug:      req.Slug,
		Image:     req.Image,
		UnitPrice: req.UnitPrice,
	}
	c, err := h.ledger.AddOrUpdate(r.Context(), token, item, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	c, err := h.ledger.SetQuantity(r.Context(), token, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	c, err := h.ledger.Remove(r.Context(), token, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

// --- Checkout ---

func (h *Handler) SaveShippingAddress(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	var req ShippingAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	addr := cart.ShippingAddress{
		FullName:   req.FullName,
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
	if !addr.Complete() {
		writeError(w, http.StatusBadRequest, "incomplete_address",
			"full_name, address, city, postal_code and country are required")
		return
	}

	c, err := h.ledger.SaveShippingAddress(r.Context(), token, addr)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) SavePaymentMethod(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}

	var req PaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	c, err := h.ledger.Get(r.Context(), token)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	// The guard runs on every entry, so a direct API call cannot save a
	// payment method before the shipping step.
	if err := checkout.ValidatePaymentMethod(c, req.Method); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	c, err = h.ledger.SavePaymentMethod(r.Context(), token, req.Method)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

// --- Orders ---

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireCartToken(w, r)
	if !ok {
		return
	}
	p := principalFrom(r.Context())

	// The checkout-session header is the idempotency half of the
	// placement key; without one, each request is its own session.
	session := r.Header.Get(HeaderCheckoutSession)
	if session == "" {
		session = uuid.NewString()
	}

	o, err := h.orders.Create(r.Context(), p, token, session)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Fetch(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(o))
}

// GetPaymentConfig returns what the order's gateway widget needs to start
// a capture. Owner (or admin) only.
func (h *Handler) GetPaymentConfig(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Fetch(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res := PaymentConfigResponse{Method: o.PaymentMethod}

	if cc, ok := h.gateways.ClientCaptureFor(o.PaymentMethod); ok {
		token, err := cc.CreateIntent(o)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		res.IntentToken = token
		if pp, ok := cc.(*payment.PayPal); ok {
			res.ClientID = pp.ClientID()
		}
	}
	if rc, ok := h.gateways.RedirectCaptureFor(o.PaymentMethod); ok {
		params, err := rc.RedirectParams(o)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		res.RedirectParams = params
	}

	writeJSON(w, http.StatusOK, res)
}

// PayOrder records a client-capture payment from a proof object, or a
// manual cash settlement when an admin submits it for a COD order.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	o, err := h.orders.Fetch(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var result order.PaymentResult
	switch {
	case o.PaymentMethod == checkout.MethodCash:
		if !p.IsAdmin {
			h.writeDomainError(w, r, order.ErrUnauthorized)
			return
		}
		g, _ := h.gateways.Lookup(checkout.MethodCash)
		result = g.(*payment.Cash).ManualResult(o, p.ID)

	default:
		cc, ok := h.gateways.ClientCaptureFor(o.PaymentMethod)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "no_client_capture",
				"order's payment method does not capture client-side")
			return
		}
		proof, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		result, err = cc.VerifyProof(o, proof)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}

	h.recordPayment(w, r, o, result)
}

// PaymentCallback records a redirect-capture payment from the gateway's
// out-of-band payload. No principal: the gateway is not a logged-in user,
// and safety comes from payload verification plus the idempotent,
// amount-checked RecordPayment.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.FetchForCapture(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rc, ok := h.gateways.RedirectCaptureFor(o.PaymentMethod)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "no_redirect_capture",
			"order's payment method does not capture via redirect")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := rc.ParseCallback(o, payload)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.recordPayment(w, r, o, result)
}

func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RecordDelivery(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(o))
}

// recordPayment converges both capture variants. A duplicate confirmation
// surfaces as ErrAlreadyPaid, which is success for the caller: respond 200
// with the paid order and no error body. The result's own provider is what
// the lifecycle compares against the order's method, so a capture that
// originated at the wrong gateway is rejected even if an adapter was
// registered under a mismatched method name.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request, o *order.Order, result order.PaymentResult) {
	updated, err := h.orders.RecordPayment(r.Context(), o.ID, result, result.Provider)
	if errors.Is(err, order.ErrAlreadyPaid) {
		slog.InfoContext(r.Context(), "duplicate payment confirmation ignored", "order_id", o.ID)
		current, ferr := h.orders.FetchForCapture(r.Context(), o.ID)
		if ferr != nil {
			h.writeDomainError(w, r, ferr)
			return
		}
		writeJSON(w, http.StatusOK, mapOrderToResponse(current))
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(updated))
}

// --- helpers ---

func (h *Handler) cartResponse(c cart.Cart) CartResponse {
	res := CartResponse{
		Items:           c.Items,
		ItemCount:       c.ItemCount(),
		ShippingAddress: c.ShippingAddress,
		PaymentMethod:   c.PaymentMethod,
		CheckoutState:   string(checkout.StateOf(c)),
	}
	if q, err := pricing.Compute(c, h.rules); err == nil {
		res.Quote = &q
	}
	return res
}

func (h *Handler) requireCartToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := cartTokenFrom(r.Context())
	if token == "" {
		writeError(w, http.StatusBadRequest, "cart_token_required",
			HeaderCartToken+" header is required")
		return "", false
	}
	return token, true
}

// writeDomainError maps the core's error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)

	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		status, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, cart.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrConcurrentModification):
		status, code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, pricing.ErrEmptyCart):
		status, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, checkout.ErrPrerequisiteMissing):
		status, code = http.StatusUnprocessableEntity, "prerequisite_missing"
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		status, code = http.StatusUnprocessableEntity, "invalid_payment_method"
	case errors.Is(err, order.ErrNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, order.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, order.ErrPaymentAmountMismatch):
		status, code = http.StatusConflict, "payment_amount_mismatch"
	case errors.Is(err, order.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, payment.ErrMalformedProof):
		status, code = http.StatusBadRequest, "malformed_proof"
	case errors.Is(err, payment.ErrCaptureIncomplete):
		status, code = http.StatusUnprocessableEntity, "capture_incomplete"
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "unhandled error", "error", err)
		writeError(w, status, code, "")
		return
	}
	writeError(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
