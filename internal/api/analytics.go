package api

import (
	"context"
	"net/http"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) SalesAnalytics(ctx context.Context) (*domain.SalesAnalytics, error) {
	var out domain.SalesAnalytics
	if err := c.do(ctx, request{method: http.MethodGet, path: "/analytics/sales"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
