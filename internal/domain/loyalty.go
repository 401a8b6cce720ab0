package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoyaltyTransaction struct {
	TransactionID int64      `json:"transactionId"`
	OrderID       *int64     `json:"orderId,omitempty"`
	Points        int        `json:"points"`
	Type          string     `json:"type"`
	Description   string     `json:"description,omitempty"`
	DisplayType   string     `json:"displayType,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

type LoyaltyAccount struct {
	LoyaltyAccountID   int64                `json:"loyaltyAccountId"`
	UserID             int64                `json:"userId"`
	UserName           string               `json:"userName,omitempty"`
	UserEmail          string               `json:"userEmail,omitempty"`
	UserPhone          string               `json:"userPhone,omitempty"`
	PointsBalance      int                  `json:"pointsBalance"`
	TotalEarned        int                  `json:"totalEarned"`
	CreatedAt          *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time           `json:"updatedAt,omitempty"`
	RecentTransactions []LoyaltyTransaction `json:"recentTransactions,omitempty"`
}

type RedeemRequest struct {
	UserID     int64  `json:"userId"`
	Points     int    `json:"points"`
	RewardName string `json:"rewardName"`
}

type RedeemResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	DiscountCode   string `json:"discountCode,omitempty"`
	PointsRedeemed int    `json:"pointsRedeemed,omitempty"`
	RewardName     string `json:"rewardName,omitempty"`
}

// DiscountValidation is the outcome of validating a discount code remotely.
type DiscountValidation struct {
	Valid          bool            `json:"valid"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Message        string          `json:"message,omitempty"`
	Code           string          `json:"code,omitempty"`
}

type ActiveCoupon struct {
	HasCoupon  bool   `json:"hasCoupon"`
	CouponCode string `json:"couponCode,omitempty"`
}

type LoyaltyStats struct {
	TotalAccounts       int64 `json:"totalAccounts"`
	TotalPointsIssued   int64 `json:"totalPointsIssued"`
	TotalPointsRedeemed int64 `json:"totalPointsRedeemed"`
	ActivePointsBalance int64 `json:"activePointsBalance"`
}
