package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(AttachIdentity)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Post("/items", handler.AddItem)
		r.Put("/items/{productID}", handler.SetQuantity)
		r.Delete("/items/{productID}", handler.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Put("/shipping-address", handler.SaveShippingAddress)
		r.Put("/payment-method", handler.SavePaymentMethod)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.PlaceOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Get("/{id}/payment-config", handler.GetPaymentConfig)
		r.Put("/{id}/pay", handler.PayOrder)
		r.Post("/{id}/callback", handler.PaymentCallback)
		r.Put("/{id}/deliver", handler.DeliverOrder)
	})

	return r
}
