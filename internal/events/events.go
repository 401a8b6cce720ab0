// Package events publishes checkout lifecycle events for downstream consumers
// such as order fulfilment and analytics.
package events

import (
	"context"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTopic receives every checkout event.
const DefaultTopic = "storefront-checkout"

type Type string

const (
	CheckoutSucceeded Type = "checkout.succeeded"
	CheckoutFailed    Type = "checkout.failed"
	CheckoutCancelled Type = "checkout.cancelled"
)

type CheckoutEvent struct {
	Type          Type                 `json:"event_type"`
	OrderID       int64                `json:"order_id,omitempty"`
	CustomerID    int64                `json:"customer_id"`
	PaymentID     int64                `json:"payment_id,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev CheckoutEvent) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, CheckoutEvent) error { return nil }
