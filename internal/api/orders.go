package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, request{method: http.MethodPost, path: "/orders", body: req, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/orders/%d", id), envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return c.orders(ctx, "/orders", nil)
}

func (c *Client) OrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return c.orders(ctx, pathf("/orders/customer/%d", customerID), nil)
}

func (c *Client) OrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return c.orders(ctx, pathf("/orders/status/%s", string(status)), nil)
}

func (c *Client) RecentOrders(ctx context.Context, days int) ([]domain.Order, error) {
	if days <= 0 {
		days = 7
	}
	return c.orders(ctx, "/orders/recent", url.Values{"days": {strconv.Itoa(days)}})
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, req domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, request{method: http.MethodPatch, path: pathf("/orders/%d/status", id), body: req, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Order, error) {
	var out domain.Order
	q := url.Values{"paymentStatus": {string(status)}}
	if err := c.do(ctx, request{method: http.MethodPatch, path: pathf("/orders/%d/payment-status", id), query: q, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathf("/orders/%d", id), envelope: true}, nil)
}

func (c *Client) orders(ctx context.Context, path string, q url.Values) ([]domain.Order, error) {
	var out []domain.Order
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: q, envelope: true}, &out)
	return out, err
}
