package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodUPI PaymentMethod = "UPI"
	PaymentMethodCOD PaymentMethod = "COD"
)

// RequiresDetails reports whether the method needs a shopper-supplied identifier
// and OTP verification before the payment completes.
func (m PaymentMethod) RequiresDetails() bool {
	return m == PaymentMethodUPI
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodUPI || m == PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type PaymentRequest struct {
	OrderID       int64           `json:"orderId"`
	CustomerID    int64           `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	UPIID         *string         `json:"upiId"`
	Notes         string          `json:"notes,omitempty"`
}

type Payment struct {
	PaymentID     int64           `json:"paymentId"`
	OrderID       int64           `json:"orderId"`
	CustomerID    int64           `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	UPIID         string          `json:"upiId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}
