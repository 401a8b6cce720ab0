package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	var out domain.Payment
	if err := c.do(ctx, request{method: http.MethodPost, path: "/payments/initiate", body: req, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessPayment submits the OTP for a pending payment. A rejected OTP is not an
// error: the returned payment carries status FAILED and a failure reason.
func (c *Client) ProcessPayment(ctx context.Context, paymentID int64, otp string) (*domain.Payment, error) {
	var out domain.Payment
	q := url.Values{"otp": {otp}}
	if err := c.do(ctx, request{method: http.MethodPost, path: pathf("/payments/%d/process", paymentID), query: q, envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	var out domain.Payment
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/payments/%d", paymentID), envelope: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return c.payments(ctx, "/payments")
}

func (c *Client) PaymentsByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	return c.payments(ctx, pathf("/payments/order/%d", orderID))
}

func (c *Client) PaymentsByCustomer(ctx context.Context, customerID int64) ([]domain.Payment, error) {
	return c.payments(ctx, pathf("/payments/customer/%d", customerID))
}

func (c *Client) PaymentsByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	return c.payments(ctx, pathf("/payments/status/%s", string(status)))
}

func (c *Client) payments(ctx context.Context, path string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := c.do(ctx, request{method: http.MethodGet, path: path, envelope: true}, &out)
	return out, err
}
