package httpx

import (
	"context"
	"net/http"

	"github.com/jcmexdev/storefront-core/internal/order"
)

// Upstream auth supplies the principal as headers; this core only
// authorizes, never authenticates.
const (
	HeaderPrincipalID     = "X-Principal-ID"
	HeaderPrincipalAdmin  = "X-Principal-Admin"
	HeaderCartToken       = "X-Cart-Token"
	HeaderCheckoutSession = "X-Checkout-Session"
)

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const (
	ctxKeyPrincipal contextKey = "principal"
	ctxKeyCartToken contextKey = "cart_token"
)

// AttachIdentity extracts the externally supplied principal and cart token
// into the request context.
func AttachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := order.Principal{
			ID:      r.Header.Get(HeaderPrincipalID),
			IsAdmin: r.Header.Get(HeaderPrincipalAdmin) == "true",
		}
		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, p)
		ctx = context.WithValue(ctx, ctxKeyCartToken, r.Header.Get(HeaderCartToken))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) order.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(order.Principal)
	return p
}

func cartTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(ctxKeyCartToken).(string)
	return t
}
