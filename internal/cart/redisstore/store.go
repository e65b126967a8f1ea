// Package redisstore persists carts in Redis, keyed by the client-held
// token. Each cart is a single JSON value carrying its version counter, so
// one write is the whole transaction: WATCH/MULTI turns the version check
// plus SET into a compare-and-swap.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/storefront-core/internal/cart"
)

var _ cart.Store = (*Store)(nil)

// Store implements cart.Store on top of a Redis instance.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. Idle carts expire after ttl; every write
// refreshes the expiry, so only abandoned sessions are reaped.
func New(addr string, ttl time.Duration) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// NewWithClient wraps an existing client. Used by tests with miniredis-style
// substitutes and by callers that manage the connection themselves.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// envelope is the stored JSON shape: the version travels with the cart so a
// single GET/SET pair is sufficient for the optimistic check.
type envelope struct {
	Version uint64    `json:"version"`
	Cart    cart.Cart `json:"cart"`
}

func key(token string) string {
	return "cart:" + token
}

func (s *Store) Get(ctx context.Context, token string) (cart.Cart, uint64, error) {
	raw, err := s.client.Get(ctx, key(token)).Result()
	if err == redis.Nil {
		return cart.Cart{}, 0, nil
	}
	if err != nil {
		return cart.Cart{}, 0, fmt.Errorf("redisstore: get %q: %w", token, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return cart.Cart{}, 0, fmt.Errorf("redisstore: decode %q: %w", token, err)
	}
	return env.Cart, env.Version, nil
}

func (s *Store) Put(ctx context.Context, token string, c cart.Cart, version uint64) error {
	k := key(token)

	payload, err := json.Marshal(envelope{Version: version + 1, Cart: c})
	if err != nil {
		return fmt.Errorf("redisstore: encode %q: %w", token, err)
	}

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Result()
		switch {
		case err == redis.Nil:
			if version != 0 {
				return cart.ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("redisstore: read during put %q: %w", token, err)
		default:
			var env envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return fmt.Errorf("redisstore: decode during put %q: %w", token, err)
			}
			if env.Version != version {
				return cart.ErrVersionConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, payload, s.ttl)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txn, k)
	if err == redis.TxFailedErr {
		// Another writer touched the key between WATCH and EXEC.
		return cart.ErrVersionConflict
	}
	return err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
