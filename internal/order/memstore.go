package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jcmexdev/storefront-core/internal/cart"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store for local development and tests. It
// enforces the same conditional-write semantics as the sqlite store.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	byKey  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
		byKey:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[o.PlacementKey]; exists {
		return ErrDuplicatePlacement
	}
	s.orders[o.ID] = clone(o)
	s.byKey[o.PlacementKey] = o.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *MemoryStore) GetByPlacementKey(ctx context.Context, key string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.get(id)
}

func (s *MemoryStore) ListByPrincipal(ctx context.Context, principalID string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Order
	for _, o := range s.orders {
		if o.PrincipalID == principalID {
			out = append(out, clone(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, clone(o))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, result PaymentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &result
	o.UpdatedAt = paidAt
	return nil
}

func (s *MemoryStore) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !o.IsPaid || o.IsDelivered {
		return ErrInvalidTransition
	}
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	o.UpdatedAt = deliveredAt
	return nil
}

func (s *MemoryStore) get(id string) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

// clone deep-copies an order so callers can never alias the stored one. The
// sqlite store gets this isolation for free from scanning fresh rows; the
// memory store has to do it by hand.
func clone(o *Order) *Order {
	cp := *o
	cp.Items = append([]cart.LineItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	return &cp
}

func sortNewestFirst(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
