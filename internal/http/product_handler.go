package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, name string) ([]domain.Product, error)
}

// ProductLookup returns a single, possibly cached, product.
type ProductLookup interface {
	Product(ctx context.Context, id int64) (*domain.Product, error)
}

type ProductHandler struct {
	lister  ProductLister
	lookup  ProductLookup
	timeout time.Duration
}

func NewProductHandler(lister ProductLister, lookup ProductLookup, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		lister:  lister,
		lookup:  lookup,
		timeout: timeout,
	}
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Stock       *int            `json:"stock,omitempty"`
	InStock     bool            `json:"in_stock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// GET /api/v1/products?q=
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		res []domain.Product
		err error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		res, err = h.lister.SearchProducts(ctx, q)
	} else {
		res, err = h.lister.ListProducts(ctx)
	}
	if err != nil {
		respondUpstreamError(w, err, "failed to load products")
		return
	}

	products := make([]ProductResponse, len(res))
	for i := range res {
		products[i] = toProductResponse(&res[i])
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	p, err := h.lookup.Product(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondUpstreamError(w, err, "failed to load product")
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Stock:       p.StockQuantity,
		InStock:     p.InStock(1),
	}
}
