package domain

import "github.com/shopspring/decimal"

type Campaign struct {
	CampaignID     int64            `json:"campaignId"`
	Title          string           `json:"title"`
	TargetAudience string           `json:"targetAudience,omitempty"`
	BannerImageURL string           `json:"bannerImageUrl,omitempty"`
	Budget         *decimal.Decimal `json:"budget,omitempty"`
	StartDate      string           `json:"startDate,omitempty"`
	EndDate        string           `json:"endDate,omitempty"`
	Active         bool             `json:"active"`
}

// CampaignProduct is a product offered at a campaign price.
type CampaignProduct struct {
	ProductID          int64           `json:"productId"`
	ProductName        string          `json:"productName,omitempty"`
	OriginalPrice      decimal.Decimal `json:"originalPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	DiscountedPrice    decimal.Decimal `json:"discountedPrice"`
}

type CreateCampaignRequest struct {
	Title          string            `json:"title"`
	TargetAudience string            `json:"targetAudience,omitempty"`
	BannerImageURL string            `json:"bannerImageUrl,omitempty"`
	Budget         *decimal.Decimal  `json:"budget,omitempty"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	Products       []CampaignProduct `json:"products,omitempty"`
}

type CampaignReport struct {
	CampaignID     int64           `json:"campaignId"`
	Title          string          `json:"title"`
	TotalOrders    int64           `json:"totalOrders"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalSavings   decimal.Decimal `json:"totalSavings"`
	UnitsSold      int64           `json:"unitsSold"`
	BudgetUtilized decimal.Decimal `json:"budgetUtilized"`
}
