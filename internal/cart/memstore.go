package cart

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store for local development and tests. It
// honours the same versioning contract as the redis-backed store.
type MemoryStore struct {
	mu       sync.Mutex
	carts    map[string]Cart
	versions map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:    make(map[string]Cart),
		versions: make(map[string]uint64),
	}
}

func (s *MemoryStore) Get(ctx context.Context, token string) (Cart, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[token]
	if !ok {
		return Cart{}, 0, nil
	}
	return c.Clone(), s.versions[token], nil
}

func (s *MemoryStore) Put(ctx context.Context, token string, c Cart, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[token] != version {
		return ErrVersionConflict
	}
	s.carts[token] = c.Clone()
	s.versions[token] = version + 1
	return nil
}
