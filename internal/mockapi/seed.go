package mockapi

import (
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

// Demo credentials created by Seed.
const (
	AdminEmail       = "admin@shopsphere.com"
	AdminPassword    = "Admin@123"
	CustomerEmail    = "customer@shopsphere.com"
	CustomerPassword = "Customer@123"
	CustomerID       = 2
	CustomerCoupon   = "REWARD-2-1700000000000"
)

// Seed fills s with a small demo catalog, pickup stores with their stock, two
// users, a reward code and an active campaign.
func Seed(s *Store) {
	stock := func(n int) *int { return &n }
	price := decimal.RequireFromString

	for _, p := range []domain.Product{
		{ProductID: 1, Name: "Wireless Mouse", Category: "Electronics", SKU: "EL-MOU-001", Price: price("599"), StockQuantity: stock(50)},
		{ProductID: 2, Name: "Mechanical Keyboard", Category: "Electronics", SKU: "EL-KEY-002", Price: price("2499"), StockQuantity: stock(20)},
		{ProductID: 3, Name: "Cotton T-Shirt", Category: "Clothing", SKU: "CL-TSH-003", Price: price("399"), StockQuantity: stock(100)},
		{ProductID: 4, Name: "Steel Water Bottle", Category: "Home", SKU: "HM-BOT-004", Price: price("349"), StockQuantity: stock(5)},
		{ProductID: 5, Name: "Basmati Rice 5kg", Category: "Grocery", SKU: "GR-RIC-005", Price: price("650"), StockQuantity: stock(0)},
	} {
		s.AddProduct(p)
	}

	s.AddStore("Mumbai Central")
	s.AddStore("Bengaluru Indiranagar")
	for _, inv := range []domain.StoreInventory{
		{ProductID: 1, StoreLocation: "Mumbai Central", StockQuantity: 12},
		{ProductID: 2, StoreLocation: "Mumbai Central", StockQuantity: 4},
		{ProductID: 1, StoreLocation: "Bengaluru Indiranagar", StockQuantity: 30},
		{ProductID: 3, StoreLocation: "Bengaluru Indiranagar", StockQuantity: 0},
	} {
		_, _ = s.UpsertInventory(inv)
	}

	s.AddUser(domain.User{UserID: 1, Name: "Admin", Email: AdminEmail, Role: domain.RoleAdmin}, AdminPassword, 0)
	s.AddUser(domain.User{UserID: CustomerID, Name: "Asha Rao", Email: CustomerEmail, Phone: "9876543210", Role: domain.RoleCustomer}, CustomerPassword, 750)
	s.AddCoupon(CustomerCoupon, CustomerID, price("50"))

	s.AddCampaign(domain.Campaign{
		CampaignID:     1,
		Title:          "Festive Electronics Sale",
		TargetAudience: "ALL",
		StartDate:      "2026-10-01",
		EndDate:        "2026-11-15",
		Active:         true,
	}, domain.CampaignProduct{
		ProductID:          2,
		ProductName:        "Mechanical Keyboard",
		OriginalPrice:      price("2499"),
		DiscountPercentage: price("20"),
		DiscountedPrice:    price("1999.20"),
	})
}
