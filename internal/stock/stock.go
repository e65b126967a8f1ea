// Package stock provides read-only access to the external system of record
// for product availability. This core never writes stock; the authoritative
// decrement happens downstream of order placement.
package stock

import "context"

// Oracle answers "how many units of this product are available right now".
// Implementations must respect the context deadline; callers treat any
// error as a failed stock check and refuse the mutation (fail closed).
type Oracle interface {
	CountInStock(ctx context.Context, productID string) (int, error)
}
