package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type OrderLister interface {
	OrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderLister
	shopper Shopper
	timeout time.Duration
}

func NewOrdersHandler(orders OrderLister, shopper Shopper, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		shopper: shopper,
		timeout: timeout,
	}
}

type OrderItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type OrderResponseDTO struct {
	ID             int64              `json:"id"`
	OrderType      domain.OrderType   `json:"order_type"`
	Status         domain.OrderStatus `json:"status"`
	PaymentStatus  string             `json:"payment_status,omitempty"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	DiscountCode   string             `json:"discount_code,omitempty"`
	DiscountAmount *decimal.Decimal   `json:"discount_amount,omitempty"`
	Items          []OrderItemDTO     `json:"items"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := h.shopper.CurrentUser()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.OrdersByCustomer(ctx, user.UserID)
	if err != nil {
		respondUpstreamError(w, err, "failed to load orders")
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, toOrderDTO(&orders[i]))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := h.shopper.CurrentUser()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	o, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		if api.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		respondUpstreamError(w, err, "failed to load order")
		return
	}
	// other shoppers' orders look missing
	if o.CustomerID != user.UserID {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

func toOrderDTO(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		items = append(items, OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice,
		})
	}
	return OrderResponseDTO{
		ID:             o.OrderID,
		OrderType:      o.OrderType,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		TotalAmount:    o.TotalAmount,
		DiscountCode:   o.DiscountCode,
		DiscountAmount: o.DiscountAmount,
		Items:          items,
		CreatedAt:      o.CreatedAt,
	}
}
