package stock

import (
	"context"
	"fmt"
	"sync"
)

// Ensure the fake satisfies the port at compile time.
var _ Oracle = (*FakeOracle)(nil)

// FakeOracle is an in-memory oracle for local development and tests.
type FakeOracle struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewFakeOracle seeds the oracle with fixed counts.
func NewFakeOracle(counts map[string]int) *FakeOracle {
	c := make(map[string]int, len(counts))
	for k, v := range counts {
		c[k] = v
	}
	return &FakeOracle{counts: c}
}

func (f *FakeOracle) CountInStock(ctx context.Context, productID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.counts[productID]
	if !ok {
		return 0, fmt.Errorf("stock: unknown product %q", productID)
	}
	return n, nil
}

// SetCount adjusts availability, e.g. to simulate a sell-out mid-test.
func (f *FakeOracle) SetCount(productID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[productID] = n
}
