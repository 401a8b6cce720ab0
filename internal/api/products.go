package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.products(ctx, "/products", nil)
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/products/%d", id), envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, request{method: http.MethodPost, path: "/products", body: p, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, p domain.Product) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, request{method: http.MethodPut, path: pathf("/products/%d", id), body: p, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathf("/products/%d", id), envelope: true}, nil)
}

func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return c.products(ctx, pathf("/products/category/%s", category), nil)
}

func (c *Client) SearchProducts(ctx context.Context, name string) ([]domain.Product, error) {
	return c.products(ctx, "/products/search", url.Values{"name": {name}})
}

func (c *Client) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return c.products(ctx, "/products/low-stock", nil)
}

func (c *Client) LowStockCount(ctx context.Context) (int64, error) {
	var n int64
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/low-stock/count", envelope: true}, &n)
	return n, err
}

// ProductsAvailableForCampaign lists products not tied up in another campaign.
// campaignID 0 means a campaign that does not exist yet.
func (c *Client) ProductsAvailableForCampaign(ctx context.Context, campaignID int64) ([]domain.Product, error) {
	var q url.Values
	if campaignID > 0 {
		q = url.Values{"campaignId": {strconv.FormatInt(campaignID, 10)}}
	}
	return c.products(ctx, "/products/available-for-campaign", q)
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/categories", envelope: true}, &out)
	return out, err
}

func (c *Client) UpdateProductStock(ctx context.Context, id int64, quantity int) (*domain.Product, error) {
	body := map[string]int{"quantity": quantity}
	var out domain.Product
	if err := c.do(ctx, request{method: http.MethodPatch, path: pathf("/products/%d/stock", id), body: body, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) products(ctx context.Context, path string, q url.Values) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: q, envelope: true}, &out)
	return out, err
}
