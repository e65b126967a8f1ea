package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPOracle queries the catalog service over plain HTTP:
//
//	GET {baseURL}/products/{id}  ->  {"count_in_stock": 7}
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle builds an oracle client. timeout bounds each lookup; a
// lookup that exceeds it returns an error, which callers treat as
// out-of-stock rather than optimistically allowing the add.
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type productStock struct {
	CountInStock int `json:"count_in_stock"`
}

func (o *HTTPOracle) CountInStock(ctx context.Context, productID string) (int, error) {
	url := fmt.Sprintf("%s/products/%s", o.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("stock: build request for %q: %w", productID, err)
	}

	res, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("stock: lookup %q: %w", productID, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stock: lookup %q: unexpected status %d", productID, res.StatusCode)
	}

	var p productStock
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return 0, fmt.Errorf("stock: decode response for %q: %w", productID, err)
	}
	if p.CountInStock < 0 {
		return 0, fmt.Errorf("stock: negative count for %q", productID)
	}
	return p.CountInStock, nil
}
