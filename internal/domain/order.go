package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeOnline  OrderType = "ONLINE"
	OrderTypeInStore OrderType = "IN_STORE"
)

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "PLACED"
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusReady      OrderStatus = "READY_FOR_PICKUP"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type OrderItem struct {
	OrderItemID   int64            `json:"orderItemId,omitempty"`
	ProductID     int64            `json:"productId"`
	ProductName   string           `json:"productName,omitempty"`
	ProductSKU    string           `json:"productSku,omitempty"`
	Quantity      int              `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	StoreLocation string           `json:"storeLocation,omitempty"`
}

type Order struct {
	OrderID         int64            `json:"orderId"`
	CustomerID      int64            `json:"customerId"`
	OrderType       OrderType        `json:"orderType"`
	Status          OrderStatus      `json:"status"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	DiscountCode    string           `json:"discountCode,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount,omitempty"`
	ShippingAddress string           `json:"shippingAddress,omitempty"`
	StoreLocation   string           `json:"storeLocation,omitempty"`
	TrackingNumber  string           `json:"trackingNumber,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	PaymentStatus   string           `json:"paymentStatus,omitempty"`
	CampaignID      *int64           `json:"campaignId,omitempty"`
	CampaignTitle   string           `json:"campaignTitle,omitempty"`
	CampaignSavings *decimal.Decimal `json:"campaignSavings,omitempty"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty"`
	OrderItems      []OrderItem      `json:"orderItems"`
}

// CreateOrderRequest is the body of the order-creation call.
type CreateOrderRequest struct {
	CustomerID      int64            `json:"customerId"`
	OrderType       OrderType        `json:"orderType"`
	OrderItems      []OrderItem      `json:"orderItems"`
	ShippingAddress *string          `json:"shippingAddress"`
	StoreLocation   *string          `json:"storeLocation"`
	CampaignID      *int64           `json:"campaignId"`
	DiscountCode    *string          `json:"discountCode"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount"`
}

type UpdateOrderStatusRequest struct {
	Status         OrderStatus `json:"status"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
}

// Cancellable reports whether the order service still accepts a cancellation.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPlaced || s == OrderStatusConfirmed
}
