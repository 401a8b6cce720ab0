package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) UpsertStoreInventory(ctx context.Context, inv domain.StoreInventory) (*domain.StoreInventory, error) {
	var out domain.StoreInventory
	if err := c.do(ctx, request{method: http.MethodPost, path: "/store-inventory", body: inv, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InventoryByProduct(ctx context.Context, productID int64) ([]domain.StoreInventory, error) {
	return c.inventory(ctx, pathf("/store-inventory/product/%d", productID), nil)
}

func (c *Client) InventoryByStore(ctx context.Context, store string) ([]domain.StoreInventory, error) {
	return c.inventory(ctx, pathf("/store-inventory/store/%s", store), nil)
}

func (c *Client) InventoryAt(ctx context.Context, productID int64, store string) (*domain.StoreInventory, error) {
	var out domain.StoreInventory
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/store-inventory/product/%d/store/%s", productID, store), envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StoresWithProduct(ctx context.Context, productID int64) ([]string, error) {
	var out []string
	err := c.do(ctx, request{method: http.MethodGet, path: pathf("/store-inventory/product/%d/stores", productID), envelope: true}, &out)
	return out, err
}

func (c *Client) ProductAvailable(ctx context.Context, productID int64, store string) (bool, error) {
	var ok bool
	err := c.do(ctx, request{method: http.MethodGet, path: pathf("/store-inventory/product/%d/store/%s/available", productID, store), envelope: true}, &ok)
	return ok, err
}

func (c *Client) UpdateStoreStock(ctx context.Context, productID int64, store string, quantity int) error {
	q := url.Values{"quantity": {strconv.Itoa(quantity)}}
	return c.do(ctx, request{method: http.MethodPatch, path: pathf("/store-inventory/product/%d/store/%s/stock", productID, store), query: q, envelope: true}, nil)
}

func (c *Client) LowStockAtStore(ctx context.Context, store string, threshold int) ([]domain.StoreInventory, error) {
	if threshold <= 0 {
		threshold = 10
	}
	return c.inventory(ctx, pathf("/store-inventory/store/%s/low-stock", store), url.Values{"threshold": {strconv.Itoa(threshold)}})
}

func (c *Client) StoreLocations(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, request{method: http.MethodGet, path: "/store-inventory/stores", envelope: true}, &out)
	return out, err
}

func (c *Client) DeleteInventory(ctx context.Context, inventoryID int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathf("/store-inventory/%d", inventoryID), envelope: true}, nil)
}

func (c *Client) inventory(ctx context.Context, path string, q url.Values) ([]domain.StoreInventory, error) {
	var out []domain.StoreInventory
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: q, envelope: true}, &out)
	return out, err
}
