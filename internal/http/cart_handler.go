package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxQuantity = 99

// Pricer joins cart lines with product records.
type Pricer interface {
	Price(ctx context.Context, lines []domain.CartLine) ([]catalog.Row, error)
}

type CartHandler struct {
	cart    *cart.Store
	pricer  Pricer
	timeout time.Duration
}

func NewCartHandler(c *cart.Store, pricer Pricer, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    c,
		pricer:  pricer,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID     int64            `json:"product_id"`
	Quantity      int              `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	CampaignID    *int64           `json:"campaign_id,omitempty"`
	CampaignTitle string           `json:"campaign_title,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	ImageURL      string          `json:"image_url,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ListPrice     decimal.Decimal `json:"list_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	CampaignID    *int64          `json:"campaign_id,omitempty"`
	CampaignTitle string          `json:"campaign_title,omitempty"`
	Discounted    bool            `json:"discounted"`
	InStock       bool            `json:"in_stock"`
}

type CartDTO struct {
	Items    []CartItemDTO   `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, http.StatusOK)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	// An omitted quantity adds one unit.
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_unit_price", "unit_price must not be negative")
		return
	}

	h.cart.Add(r.Context(), req.ProductID, req.Quantity, cart.LineMeta{
		UnitPrice:     req.UnitPrice,
		CampaignID:    req.CampaignID,
		CampaignTitle: req.CampaignTitle,
	})
	h.respondCart(w, r, http.StatusCreated)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	h.cart.Update(r.Context(), productID, req.Quantity)
	h.respondCart(w, r, http.StatusOK)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	h.cart.Remove(r.Context(), productID)
	h.respondCart(w, r, http.StatusOK)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	h.respondCart(w, r, http.StatusOK)
}

// GET /api/v1/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{"count": h.cart.Count(r.Context())})
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lines := h.cart.Lines(ctx)
	rows, err := h.pricer.Price(ctx, lines)
	if err != nil {
		respondUpstreamError(w, err, "failed to load product details")
		return
	}
	respondJSON(w, status, toCartDTO(lines, rows))
}

func toCartDTO(lines []domain.CartLine, rows []catalog.Row) CartDTO {
	out := CartDTO{Items: make([]CartItemDTO, 0, len(rows)), Subtotal: catalog.Subtotal(rows)}
	for _, l := range lines {
		out.Count += l.Quantity
	}
	for _, row := range rows {
		out.Items = append(out.Items, CartItemDTO{
			ProductID:     row.Product.ProductID,
			Name:          row.Product.Name,
			ImageURL:      row.Product.ImageURL,
			Quantity:      row.Line.Quantity,
			UnitPrice:     row.UnitPrice,
			ListPrice:     row.Product.Price,
			LineTotal:     row.LineTotal(),
			CampaignID:    row.Line.CampaignID,
			CampaignTitle: row.CampaignTitle,
			Discounted:    row.Discounted(),
			InStock:       row.Product.InStock(row.Line.Quantity),
		})
	}
	return out
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
