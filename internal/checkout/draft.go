package checkout

import (
	"strings"

	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

type DraftLine struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	// Stock is nil when the catalog does not track stock for the product.
	Stock *int `json:"stock,omitempty"`
}

// Draft is the order about to be created. It lives in memory only and is
// consumed by at most one order creation.
type Draft struct {
	CustomerID      int64            `json:"customerId"`
	OrderType       domain.OrderType `json:"orderType"`
	Lines           []DraftLine      `json:"lines"`
	CampaignID      *int64           `json:"campaignId,omitempty"`
	DiscountCode    string           `json:"discountCode,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount,omitempty"`
	ShippingAddress string           `json:"shippingAddress,omitempty"`
	StoreLocation   string           `json:"storeLocation,omitempty"`
}

// Fulfilment is where the shopper wants the order.
type Fulfilment struct {
	OrderType       domain.OrderType
	ShippingAddress string
	StoreLocation   string
}

// BuildDraft assembles a draft from priced cart rows. The first campaign found
// on any row travels with the order.
func BuildDraft(customerID int64, rows []catalog.Row, f Fulfilment) Draft {
	d := Draft{
		CustomerID: customerID,
		OrderType:  f.OrderType,
		Lines:      make([]DraftLine, 0, len(rows)),
	}
	switch f.OrderType {
	case domain.OrderTypeOnline:
		d.ShippingAddress = strings.TrimSpace(f.ShippingAddress)
	case domain.OrderTypeInStore:
		d.StoreLocation = strings.TrimSpace(f.StoreLocation)
	}

	for _, r := range rows {
		d.Lines = append(d.Lines, DraftLine{
			ProductID: r.Product.ProductID,
			Name:      r.Product.Name,
			Quantity:  r.Line.Quantity,
			UnitPrice: r.UnitPrice,
			Stock:     r.Product.StockQuantity,
		})
		if d.CampaignID == nil && r.Line.CampaignID != nil {
			id := *r.Line.CampaignID
			d.CampaignID = &id
		}
	}
	return d
}

// Validate runs the local checks that block order submission.
func (d Draft) Validate() error {
	if d.CustomerID <= 0 {
		return ErrNotSignedIn
	}
	if len(d.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, l := range d.Lines {
		if l.Quantity < 1 {
			return ErrQuantity
		}
		if l.Stock != nil && l.Quantity > *l.Stock {
			return &Error{Message: "Insufficient stock for " + l.Name, Err: ErrInsufficientStock}
		}
	}
	switch d.OrderType {
	case domain.OrderTypeOnline:
		if strings.TrimSpace(d.ShippingAddress) == "" {
			return ErrShippingAddress
		}
	case domain.OrderTypeInStore:
		if strings.TrimSpace(d.StoreLocation) == "" {
			return ErrStoreLocation
		}
	default:
		return ErrOrderType
	}
	return nil
}

func (d Draft) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Total is the amount shown to the shopper: subtotal minus discount, never
// below zero. The order service computes the authoritative amount.
func (d Draft) Total() decimal.Decimal {
	total := d.Subtotal()
	if d.DiscountAmount != nil {
		total = total.Sub(*d.DiscountAmount)
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// WithDiscount returns a copy of d with a discount applied, or removed when a
// is nil.
func (d Draft) WithDiscount(a *AppliedDiscount) Draft {
	if a == nil {
		d.DiscountCode = ""
		d.DiscountAmount = nil
		return d
	}
	amount := a.Amount
	d.DiscountCode = a.Code
	d.DiscountAmount = &amount
	return d
}

func (d Draft) ToCreateOrderRequest() domain.CreateOrderRequest {
	req := domain.CreateOrderRequest{
		CustomerID: d.CustomerID,
		OrderType:  d.OrderType,
		OrderItems: make([]domain.OrderItem, 0, len(d.Lines)),
		CampaignID: d.CampaignID,
	}
	for _, l := range d.Lines {
		req.OrderItems = append(req.OrderItems, domain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	switch d.OrderType {
	case domain.OrderTypeOnline:
		addr := d.ShippingAddress
		req.ShippingAddress = &addr
	case domain.OrderTypeInStore:
		store := d.StoreLocation
		req.StoreLocation = &store
	}
	if d.DiscountCode != "" && d.DiscountAmount != nil {
		code := d.DiscountCode
		amount := *d.DiscountAmount
		req.DiscountCode = &code
		req.DiscountAmount = &amount
	}
	return req
}
