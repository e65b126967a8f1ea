package cart

import (
	"context"
	"errors"
)

// Store is the port for cart persistence, addressed by a client-held token.
// The version returned by Get must be passed back to Put unchanged; a Put
// whose version no longer matches the stored one fails with
// ErrVersionConflict and writes nothing.
type Store interface {
	// Get loads the cart for token. A token that was never written returns
	// an empty cart with version 0.
	Get(ctx context.Context, token string) (Cart, uint64, error)

	// Put stores the cart only if the persisted version still equals
	// version, then increments it. This is the single transactional write
	// that keeps the logical update and the persisted state consistent.
	Put(ctx context.Context, token string, c Cart, version uint64) error
}

// IsVersionConflict reports whether err is (or wraps) a store version
// conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
