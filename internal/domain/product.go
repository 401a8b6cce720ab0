package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ProductID     int64           `json:"productId"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	SKU           string          `json:"sku,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity *int            `json:"stockQuantity,omitempty"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

// InStock reports whether quantity units can be bought. Products without stock
// information are treated as unlimited.
func (p *Product) InStock(quantity int) bool {
	if p.StockQuantity == nil {
		return true
	}
	return quantity <= *p.StockQuantity
}
