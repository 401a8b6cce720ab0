package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupAdminAPI returns a client signed in as email.
func setupAdminAPI(t *testing.T, email, password string) (*api.Client, *Store) {
	t.Helper()
	store := NewStore()
	Seed(store)
	srv := httptest.NewServer(NewServer(store, zerolog.Nop()))
	t.Cleanup(srv.Close)

	var token string
	client := api.New(srv.URL+"/api", zerolog.Nop(), api.WithTokenSource(api.TokenFunc(func() string { return token })))
	res, err := client.Login(context.Background(), domain.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	token = res.Token
	return client, store
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	anon, _ := setupTestAPI(t)
	_, err := anon.LowStockProducts(context.Background())
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	customer, _ := setupAdminAPI(t, CustomerEmail, CustomerPassword)
	_, err = customer.SalesAnalytics(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Admin access required", apiErr.Message)
}

func TestAdminProducts(t *testing.T) {
	client, store := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	low, err := client.LowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Steel Water Bottle", low[0].Name)
	n, err := client.LowStockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stock := 8
	p, err := client.CreateProduct(ctx, domain.Product{Name: " Desk Lamp ", Category: "Home", Price: decimal.NewFromInt(899), StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.ProductID)
	assert.Equal(t, "Desk Lamp", p.Name)
	assert.True(t, p.IsActive)

	_, err = client.CreateProduct(ctx, domain.Product{Name: "Free", Price: decimal.Zero})
	assert.Equal(t, "Price must be greater than 0", api.Message(err, ""))

	p.Price = decimal.NewFromInt(799)
	updated, err := client.UpdateProduct(ctx, p.ProductID, *p)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(799).Equal(updated.Price))

	updated, err = client.UpdateProductStock(ctx, p.ProductID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, *updated.StockQuantity)

	require.NoError(t, client.DeleteProduct(ctx, p.ProductID))
	_, err = store.Product(p.ProductID)
	assert.Error(t, err)
	assert.True(t, api.IsNotFound(client.DeleteProduct(ctx, p.ProductID)))
}

func TestProductsAvailableForCampaign(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	ids := func(ps []domain.Product) []int64 {
		out := []int64{}
		for _, p := range ps {
			out = append(out, p.ProductID)
		}
		return out
	}

	fresh, err := client.ProductsAvailableForCampaign(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, ids(fresh))

	own, err := client.ProductsAvailableForCampaign(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(own))
}

func TestOrderStatusFlow(t *testing.T) {
	client, store := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 4, Quantity: 2}))
	require.NoError(t, err)

	_, err = client.UpdateOrderStatus(ctx, order.OrderID, domain.UpdateOrderStatusRequest{Status: domain.OrderStatusDelivered})
	assert.Equal(t, "Invalid status transition from PLACED to DELIVERED", api.Message(err, ""))

	o, err := client.UpdateOrderStatus(ctx, order.OrderID, domain.UpdateOrderStatusRequest{Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)

	o, err = client.UpdateOrderStatus(ctx, order.OrderID, domain.UpdateOrderStatusRequest{Status: domain.OrderStatusShipped, TrackingNumber: "TRK123"})
	require.NoError(t, err)
	assert.Equal(t, "TRK123", o.TrackingNumber)

	_, err = client.UpdateOrderStatus(ctx, order.OrderID, domain.UpdateOrderStatusRequest{Status: domain.OrderStatusCancelled})
	assert.Equal(t, "Invalid status transition from SHIPPED to CANCELLED", api.Message(err, ""))

	shipped, err := client.OrdersByStatus(ctx, domain.OrderStatusShipped)
	require.NoError(t, err)
	require.Len(t, shipped, 1)

	o, err = client.UpdateOrderPaymentStatus(ctx, order.OrderID, "completed")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", o.PaymentStatus)

	// Cancelling a confirmed order returns its stock.
	second, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 4, Quantity: 3}))
	require.NoError(t, err)
	_, err = client.UpdateOrderStatus(ctx, second.OrderID, domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})
	require.NoError(t, err)
	_, err = client.UpdateOrderStatus(ctx, second.OrderID, domain.UpdateOrderStatusRequest{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	p, _ := store.Product(4)
	assert.Equal(t, 3, *p.StockQuantity)
}

func TestRecentOrders(t *testing.T) {
	client, store := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	now := time.Now()
	store.SetClock(func() time.Time { return now.AddDate(0, 0, -10) })
	_, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	store.SetClock(func() time.Time { return now })
	recent, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	orders, err := client.RecentOrders(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, recent.OrderID, orders[0].OrderID)

	orders, err = client.RecentOrders(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestAdminPayments(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	_, err = client.InitiatePayment(ctx, domain.PaymentRequest{OrderID: order.OrderID, CustomerID: CustomerID, Amount: order.TotalAmount, PaymentMethod: domain.PaymentMethodCOD})
	require.NoError(t, err)

	all, err := client.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	mine, err := client.PaymentsByCustomer(ctx, CustomerID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	initiated, err := client.PaymentsByStatus(ctx, domain.PaymentStatusInitiated)
	require.NoError(t, err)
	assert.Len(t, initiated, 1)
	failed, err := client.PaymentsByStatus(ctx, domain.PaymentStatusFailed)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestStoreInventory(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()
	const mumbai = "Mumbai Central"

	at, err := client.InventoryByStore(ctx, mumbai)
	require.NoError(t, err)
	assert.Len(t, at, 2)

	inv, err := client.UpsertStoreInventory(ctx, domain.StoreInventory{ProductID: 2, StoreLocation: mumbai, StockQuantity: 25})
	require.NoError(t, err)
	assert.Equal(t, "Mechanical Keyboard", inv.ProductName)
	require.NotNil(t, inv.IsAvailable)
	assert.True(t, *inv.IsAvailable)

	again, err := client.InventoryByStore(ctx, mumbai)
	require.NoError(t, err)
	assert.Len(t, again, 2, "upsert replaces the record for the pair")

	_, err = client.UpsertStoreInventory(ctx, domain.StoreInventory{ProductID: 99, StoreLocation: mumbai})
	assert.True(t, api.IsNotFound(err))

	require.NoError(t, client.UpdateStoreStock(ctx, 1, mumbai, 3))
	got, err := client.InventoryAt(ctx, 1, mumbai)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)

	low, err := client.LowStockAtStore(ctx, mumbai, 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, int64(1), low[0].ProductID)

	stores, err := client.StoresWithProduct(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mumbai, "Bengaluru Indiranagar"}, stores)

	ok, err := client.ProductAvailable(ctx, 3, "Bengaluru Indiranagar")
	require.NoError(t, err)
	assert.False(t, ok, "zero stock is unavailable")

	byProduct, err := client.InventoryByProduct(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byProduct, 2)
	require.NoError(t, client.DeleteInventory(ctx, byProduct[0].InventoryID))
	byProduct, err = client.InventoryByProduct(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byProduct, 1)
}

func TestSalesAnalytics(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	_, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	_, err = client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 3, Quantity: 1}))
	require.NoError(t, err)
	cancelled, err := client.CreateOrder(ctx, onlineOrder(domain.OrderItem{ProductID: 3, Quantity: 5}))
	require.NoError(t, err)
	require.NoError(t, client.CancelOrder(ctx, cancelled.OrderID))

	a, err := client.SalesAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.TotalOrders)
	assert.Equal(t, int64(2), a.OnlineOrders)
	assert.True(t, decimal.NewFromInt(1597).Equal(a.TotalRevenue), a.TotalRevenue.String())
	assert.True(t, decimal.RequireFromString("798.50").Equal(a.AverageOrderValue), a.AverageOrderValue.String())
	assert.True(t, decimal.NewFromInt(1198).Equal(a.RevenueByCategory["Electronics"]))
	assert.Equal(t, int64(1), a.OrdersByStatus["CANCELLED"])
	require.Len(t, a.TopSellingProducts, 2)
	assert.Equal(t, int64(1), a.TopSellingProducts[0].ProductID)
}

func TestAdminCampaigns(t *testing.T) {
	client, store := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	today := time.Now()
	req := domain.CreateCampaignRequest{
		Title:     "Home Week",
		StartDate: today.AddDate(0, 0, -1).Format(dateLayout),
		EndDate:   today.AddDate(0, 0, 6).Format(dateLayout),
		Products:  []domain.CampaignProduct{{ProductID: 4, DiscountPercentage: decimal.NewFromInt(10)}},
	}
	c, err := client.CreateCampaign(ctx, req)
	require.NoError(t, err)
	assert.True(t, c.Active)

	_, products, err := store.Campaign(c.CampaignID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, decimal.RequireFromString("314.10").Equal(products[0].DiscountedPrice), products[0].DiscountedPrice.String())

	bad := req
	bad.EndDate = today.AddDate(0, 0, -5).Format(dateLayout)
	_, err = client.CreateCampaign(ctx, bad)
	assert.Equal(t, "End date must be on or after the start date", api.Message(err, ""))

	req.Title = "Home Fortnight"
	req.StartDate = today.AddDate(0, 0, 3).Format(dateLayout)
	c, err = client.UpdateCampaign(ctx, c.CampaignID, req)
	require.NoError(t, err)
	assert.Equal(t, "Home Fortnight", c.Title)
	assert.False(t, c.Active, "a campaign starting later is not active yet")

	all, err := client.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, client.DeleteCampaign(ctx, c.CampaignID))
	assert.True(t, api.IsNotFound(client.DeleteCampaign(ctx, c.CampaignID)))
}

func TestCampaignReport(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	req := onlineOrder(domain.OrderItem{ProductID: 2, Quantity: 2}, domain.OrderItem{ProductID: 1, Quantity: 1})
	campaignID := int64(1)
	req.CampaignID = &campaignID
	_, err := client.CreateOrder(ctx, req)
	require.NoError(t, err)

	r, err := client.CampaignReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Festive Electronics Sale", r.Title)
	assert.Equal(t, int64(1), r.TotalOrders)
	assert.Equal(t, int64(2), r.UnitsSold)
	// 2 × 1999.20 + 599
	assert.True(t, decimal.RequireFromString("4597.40").Equal(r.TotalRevenue), r.TotalRevenue.String())
	assert.True(t, decimal.RequireFromString("999.60").Equal(r.TotalSavings), r.TotalSavings.String())
}

func TestLoyaltyAdmin(t *testing.T) {
	client, _ := setupAdminAPI(t, AdminEmail, AdminPassword)
	ctx := context.Background()

	_, err := client.RedeemReward(ctx, domain.RedeemRequest{UserID: CustomerID, Points: 500, RewardName: "₹50 Off"})
	require.NoError(t, err)

	all, err := client.AllLoyaltyAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Empty(t, all[1].RecentTransactions)

	detail, err := client.LoyaltyUserDetails(ctx, CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", detail.UserPhone)
	require.Len(t, detail.RecentTransactions, 1)

	stats, err := client.LoyaltyStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LoyaltyStats{
		TotalAccounts:       2,
		TotalPointsIssued:   750,
		TotalPointsRedeemed: 500,
		ActivePointsBalance: 250,
	}, *stats)
}
