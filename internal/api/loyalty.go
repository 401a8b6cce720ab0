package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

func (c *Client) LoyaltyAccount(ctx context.Context, userID int64) (*domain.LoyaltyAccount, error) {
	var out domain.LoyaltyAccount
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/loyalty/%d", userID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RedeemReward(ctx context.Context, req domain.RedeemRequest) (*domain.RedeemResult, error) {
	var out domain.RedeemResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/loyalty/redeem", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateDiscountCode checks code against orderTotal. An unknown or used code
// is reported through Valid and Message, not as an error.
func (c *Client) ValidateDiscountCode(ctx context.Context, code string, orderTotal decimal.Decimal) (*domain.DiscountValidation, error) {
	var q url.Values
	if orderTotal.IsPositive() {
		q = url.Values{"orderTotal": {orderTotal.String()}}
	}
	var out domain.DiscountValidation
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/loyalty/validate-code/%s", code), query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActiveCoupon(ctx context.Context, userID int64) (*domain.ActiveCoupon, error) {
	var out domain.ActiveCoupon
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/loyalty/active-coupon/%d", userID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AllLoyaltyAccounts(ctx context.Context) ([]domain.LoyaltyAccount, error) {
	var out []domain.LoyaltyAccount
	err := c.do(ctx, request{method: http.MethodGet, path: "/loyalty/admin/all"}, &out)
	return out, err
}

func (c *Client) LoyaltyUserDetails(ctx context.Context, userID int64) (*domain.LoyaltyAccount, error) {
	var out domain.LoyaltyAccount
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/loyalty/admin/user/%d", userID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoyaltyStats(ctx context.Context) (*domain.LoyaltyStats, error) {
	var out domain.LoyaltyStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/loyalty/admin/stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
