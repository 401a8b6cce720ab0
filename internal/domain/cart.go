package domain

import "github.com/shopspring/decimal"

// CartLine is one product the shopper intends to buy in this session.
type CartLine struct {
	ProductID         int64            `json:"productId"`
	Quantity          int              `json:"quantity"`
	UnitPriceOverride *decimal.Decimal `json:"unitPrice,omitempty"`
	CampaignID        *int64           `json:"campaignId,omitempty"`
	CampaignTitle     string           `json:"campaignTitle,omitempty"`
}

// HasOverride reports whether a campaign price applies to the line.
func (l CartLine) HasOverride() bool {
	return l.UnitPriceOverride != nil
}
