package checkout

import (
	"context"
	"strings"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	MsgInvalidDiscount    = "Invalid discount code"
	MsgDiscountFailed     = "Failed to validate discount code. Please try again."
	MsgAutoDiscountFailed = "Failed to validate discount code"
)

type DiscountValidator interface {
	ValidateDiscountCode(ctx context.Context, code string, orderTotal decimal.Decimal) (*domain.DiscountValidation, error)
	ActiveCoupon(ctx context.Context, userID int64) (*domain.ActiveCoupon, error)
}

type AppliedDiscount struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// NormalizeCode trims a typed code and upper-cases it like the code input does.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ApplyDiscount validates code against subtotal. Rejections come back as *Error
// with the server's message when it sent one.
func ApplyDiscount(ctx context.Context, v DiscountValidator, code string, subtotal decimal.Decimal) (*AppliedDiscount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrDiscountCode
	}

	res, err := v.ValidateDiscountCode(ctx, code, subtotal)
	if err != nil {
		return nil, &Error{Message: api.Message(err, MsgDiscountFailed), Err: err}
	}
	if !res.Valid {
		return nil, &Error{Message: reasonOr(res.Message, MsgInvalidDiscount)}
	}
	return &AppliedDiscount{Code: code, Amount: res.DiscountAmount}, nil
}

// AutoApplyCoupon applies the shopper's unused loyalty coupon, if any. A nil
// discount with a nil error means there was nothing to apply; a failed coupon
// lookup counts as nothing to apply.
func AutoApplyCoupon(ctx context.Context, v DiscountValidator, userID int64, subtotal decimal.Decimal) (*AppliedDiscount, error) {
	coupon, err := v.ActiveCoupon(ctx, userID)
	if err != nil || coupon == nil || !coupon.HasCoupon || coupon.CouponCode == "" {
		return nil, nil
	}

	res, err := v.ValidateDiscountCode(ctx, coupon.CouponCode, subtotal)
	if err != nil {
		return nil, &Error{Message: MsgAutoDiscountFailed, Err: err}
	}
	if !res.Valid {
		return nil, &Error{Message: reasonOr(res.Message, MsgInvalidDiscount)}
	}
	return &AppliedDiscount{Code: coupon.CouponCode, Amount: res.DiscountAmount}, nil
}
