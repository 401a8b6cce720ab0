package mockapi

import (
	"sort"
	"strings"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level at or below which a product is low.
const LowStockThreshold = 10

const dateLayout = "2006-01-02"

// CreateProduct adds an active product with the next free id.
func (s *Store) CreateProduct(p domain.Product) (domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var last int64
	for id := range s.products {
		last = max(last, id)
	}
	now := s.now()
	p.ProductID = last + 1
	p.Name = strings.TrimSpace(p.Name)
	p.IsActive = true
	p.CreatedAt = &now
	p.UpdatedAt = &now
	s.products[p.ProductID] = &p
	return p, nil
}

// UpdateProduct replaces the editable fields of a product.
func (s *Store) UpdateProduct(id int64, p domain.Product) (domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[id]
	if !ok {
		return domain.Product{}, notFound("Product not found with ID: %d", id)
	}
	now := s.now()
	p.ProductID = id
	p.Name = strings.TrimSpace(p.Name)
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = &now
	*cur = p
	return p, nil
}

func validateProduct(p domain.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return invalid("Product name is required")
	case !p.Price.IsPositive():
		return invalid("Price must be greater than 0")
	case p.StockQuantity != nil && *p.StockQuantity < 0:
		return invalid("Stock quantity cannot be negative")
	}
	return nil
}

func (s *Store) DeleteProduct(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return notFound("Product not found with ID: %d", id)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) UpdateProductStock(id int64, quantity int) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, invalid("Stock quantity cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, notFound("Product not found with ID: %d", id)
	}
	now := s.now()
	p.StockQuantity = &quantity
	p.UpdatedAt = &now
	return *p, nil
}

// LowStockProducts lists active products at or below LowStockThreshold.
func (s *Store) LowStockProducts() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterProducts(func(p *domain.Product) bool {
		return p.IsActive && p.StockQuantity != nil && *p.StockQuantity <= LowStockThreshold
	})
}

// ProductsAvailableForCampaign lists active products outside every active
// campaign, plus the products of campaignID so an edit can keep them.
func (s *Store) ProductsAvailableForCampaign(campaignID int64) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taken := make(map[int64]bool)
	for _, c := range s.campaigns {
		if !c.Active || c.CampaignID == campaignID {
			continue
		}
		for _, p := range c.products {
			taken[p.ProductID] = true
		}
	}
	return s.filterProducts(func(p *domain.Product) bool {
		return p.IsActive && !taken[p.ProductID]
	})
}

// OrdersWhere lists orders matching keep, newest first.
func (s *Store) OrdersWhere(keep func(domain.Order) bool) []domain.Order {
	out := []domain.Order{}
	for _, o := range s.Orders(0) {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s *Store) OrdersByStatus(status domain.OrderStatus) []domain.Order {
	return s.OrdersWhere(func(o domain.Order) bool { return strings.EqualFold(string(o.Status), string(status)) })
}

// RecentOrders lists orders placed in the last days days.
func (s *Store) RecentOrders(days int) []domain.Order {
	s.mu.RLock()
	since := s.now().AddDate(0, 0, -days)
	s.mu.RUnlock()
	return s.OrdersWhere(func(o domain.Order) bool { return o.CreatedAt != nil && o.CreatedAt.After(since) })
}

// statusFlow lists the statuses an order may move to from each status.
var statusFlow = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPlaced:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
}

// UpdateOrderStatus moves an order along statusFlow. Cancelling returns the
// stock and shipping records the tracking number.
func (s *Store) UpdateOrderStatus(id int64, req domain.UpdateOrderStatusRequest) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, notFound("Order not found with id: %d", id)
	}
	next := domain.OrderStatus(strings.ToUpper(string(req.Status)))
	allowed := false
	for _, st := range statusFlow[o.Status] {
		allowed = allowed || st == next
	}
	if !allowed {
		return domain.Order{}, invalid("Invalid status transition from %s to %s", o.Status, next)
	}

	o.Status = next
	if next == domain.OrderStatusShipped && req.TrackingNumber != "" {
		o.TrackingNumber = req.TrackingNumber
	}
	if next == domain.OrderStatusCancelled {
		s.restoreStock(o)
	}
	now := s.now()
	o.UpdatedAt = &now
	return cloneOrder(o), nil
}

func (s *Store) UpdateOrderPaymentStatus(id int64, status domain.PaymentStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, notFound("Order not found with id: %d", id)
	}
	if strings.TrimSpace(string(status)) == "" {
		return domain.Order{}, invalid("Payment status is required")
	}
	now := s.now()
	o.PaymentStatus = strings.ToUpper(string(status))
	o.UpdatedAt = &now
	return cloneOrder(o), nil
}

// PaymentsWhere lists payments matching keep, newest first.
func (s *Store) PaymentsWhere(keep func(*domain.Payment) bool) []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Payment{}
	for _, p := range s.payments {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID > out[j].PaymentID })
	return out
}

// UpsertInventory records the stock of a product at a store, replacing any
// earlier record for the pair.
func (s *Store) UpsertInventory(inv domain.StoreInventory) (domain.StoreInventory, error) {
	if inv.StockQuantity < 0 {
		return domain.StoreInventory{}, invalid("Stock quantity cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[inv.ProductID]
	if !ok {
		return domain.StoreInventory{}, notFound("Product not found with id: %d", inv.ProductID)
	}
	if !s.hasStore(inv.StoreLocation) {
		return domain.StoreInventory{}, invalid("Unknown store location: %s", inv.StoreLocation)
	}

	now := s.now()
	rec := s.inventoryAt(inv.ProductID, inv.StoreLocation)
	if rec == nil {
		s.nextInventoryID++
		rec = &domain.StoreInventory{InventoryID: s.nextInventoryID, CreatedAt: &now}
		s.inventory[rec.InventoryID] = rec
	}
	available := true
	if inv.IsAvailable != nil {
		available = *inv.IsAvailable
	}
	rec.ProductID = inv.ProductID
	rec.ProductName = p.Name
	rec.StoreLocation = strings.TrimSpace(inv.StoreLocation)
	rec.StockQuantity = inv.StockQuantity
	rec.IsAvailable = &available
	rec.UpdatedAt = &now
	return cloneInventory(rec), nil
}

// inventoryAt finds the record of a product at a store. Caller holds the lock.
func (s *Store) inventoryAt(productID int64, store string) *domain.StoreInventory {
	for _, rec := range s.inventory {
		if rec.ProductID == productID && strings.EqualFold(rec.StoreLocation, strings.TrimSpace(store)) {
			return rec
		}
	}
	return nil
}

func (s *Store) InventoryWhere(keep func(*domain.StoreInventory) bool) []domain.StoreInventory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.StoreInventory{}
	for _, rec := range s.inventory {
		if keep(rec) {
			out = append(out, cloneInventory(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InventoryID < out[j].InventoryID })
	return out
}

func (s *Store) InventoryAt(productID int64, store string) (domain.StoreInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.inventoryAt(productID, store)
	if rec == nil {
		return domain.StoreInventory{}, notFound("Inventory not found for product %d at store %s", productID, store)
	}
	return cloneInventory(rec), nil
}

// ProductAvailable reports whether the store has the product in stock.
func (s *Store) ProductAvailable(productID int64, store string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.inventoryAt(productID, store)
	return rec != nil && rec.StockQuantity > 0 && (rec.IsAvailable == nil || *rec.IsAvailable)
}

func (s *Store) UpdateStoreStock(productID int64, store string, quantity int) error {
	if quantity < 0 {
		return invalid("Stock quantity cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.inventoryAt(productID, store)
	if rec == nil {
		return notFound("Inventory not found for product %d at store %s", productID, store)
	}
	now := s.now()
	rec.StockQuantity = quantity
	rec.UpdatedAt = &now
	return nil
}

func (s *Store) DeleteInventory(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inventory[id]; !ok {
		return notFound("Inventory not found with id: %d", id)
	}
	delete(s.inventory, id)
	return nil
}

func cloneInventory(rec *domain.StoreInventory) domain.StoreInventory {
	out := *rec
	if rec.IsAvailable != nil {
		v := *rec.IsAvailable
		out.IsAvailable = &v
	}
	return out
}

// SalesAnalytics summarises every order that was not cancelled.
func (s *Store) SalesAnalytics() domain.SalesAnalytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.SalesAnalytics{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		RevenueByCategory: make(map[string]decimal.Decimal),
		OrdersByStatus:    make(map[string]int64),
	}
	top := make(map[int64]*domain.TopProduct)
	for _, o := range s.orders {
		out.OrdersByStatus[string(o.Status)]++
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		out.TotalOrders++
		out.TotalRevenue = out.TotalRevenue.Add(o.TotalAmount)
		switch o.OrderType {
		case domain.OrderTypeOnline:
			out.OnlineOrders++
		case domain.OrderTypeInStore:
			out.InStoreOrders++
		}
		for _, it := range o.OrderItems {
			line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			if it.Subtotal != nil {
				line = *it.Subtotal
			}
			category := "Uncategorized"
			if p, ok := s.products[it.ProductID]; ok && p.Category != "" {
				category = p.Category
			}
			out.RevenueByCategory[category] = out.RevenueByCategory[category].Add(line)

			tp, ok := top[it.ProductID]
			if !ok {
				tp = &domain.TopProduct{ProductID: it.ProductID, ProductName: it.ProductName, Revenue: decimal.Zero}
				top[it.ProductID] = tp
			}
			tp.UnitsSold += int64(it.Quantity)
			tp.Revenue = tp.Revenue.Add(line)
		}
	}
	if out.TotalOrders > 0 {
		out.AverageOrderValue = out.TotalRevenue.DivRound(decimal.NewFromInt(out.TotalOrders), 2)
	}
	for _, tp := range top {
		out.TopSellingProducts = append(out.TopSellingProducts, *tp)
	}
	sort.Slice(out.TopSellingProducts, func(i, j int) bool {
		a, b := out.TopSellingProducts[i], out.TopSellingProducts[j]
		if a.UnitsSold != b.UnitsSold {
			return a.UnitsSold > b.UnitsSold
		}
		return a.ProductID < b.ProductID
	})
	if len(out.TopSellingProducts) > 5 {
		out.TopSellingProducts = out.TopSellingProducts[:5]
	}
	return out
}

func (s *Store) Campaigns() []domain.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Campaign{}
	for _, c := range s.campaigns {
		out = append(out, c.Campaign)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out
}

// CreateCampaign registers a campaign. It is active while today falls between
// its start and end dates.
func (s *Store) CreateCampaign(req domain.CreateCampaignRequest) (domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last int64
	for id := range s.campaigns {
		last = max(last, id)
	}
	c := &campaign{}
	if err := s.fillCampaign(c, last+1, req); err != nil {
		return domain.Campaign{}, err
	}
	s.campaigns[c.CampaignID] = c
	return c.Campaign, nil
}

// UpdateCampaign replaces a campaign and its product list.
func (s *Store) UpdateCampaign(id int64, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[id]; !ok {
		return domain.Campaign{}, notFound("Campaign not found with id: %d", id)
	}
	c := &campaign{}
	if err := s.fillCampaign(c, id, req); err != nil {
		return domain.Campaign{}, err
	}
	s.campaigns[id] = c
	return c.Campaign, nil
}

// fillCampaign validates req and prices its products. Caller holds the lock.
func (s *Store) fillCampaign(c *campaign, id int64, req domain.CreateCampaignRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return invalid("Campaign title is required")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return invalid("Invalid start date: %s", req.StartDate)
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return invalid("Invalid end date: %s", req.EndDate)
	}
	if end.Before(start) {
		return invalid("End date must be on or after the start date")
	}

	hundred := decimal.NewFromInt(100)
	products := make([]domain.CampaignProduct, 0, len(req.Products))
	for _, in := range req.Products {
		p, ok := s.products[in.ProductID]
		if !ok {
			return notFound("Product not found with id: %d", in.ProductID)
		}
		if !in.DiscountPercentage.IsPositive() || in.DiscountPercentage.GreaterThan(hundred) {
			return invalid("Discount for %s must be between 0 and 100 percent", p.Name)
		}
		off := p.Price.Mul(in.DiscountPercentage).Div(hundred)
		products = append(products, domain.CampaignProduct{
			ProductID:          p.ProductID,
			ProductName:        p.Name,
			OriginalPrice:      p.Price,
			DiscountPercentage: in.DiscountPercentage,
			DiscountedPrice:    p.Price.Sub(off).Round(2),
		})
	}

	today, _ := time.Parse(dateLayout, s.now().Format(dateLayout))
	c.Campaign = domain.Campaign{
		CampaignID:     id,
		Title:          strings.TrimSpace(req.Title),
		TargetAudience: req.TargetAudience,
		BannerImageURL: req.BannerImageURL,
		Budget:         req.Budget,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Active:         !today.Before(start) && !today.After(end),
	}
	c.products = products
	return nil
}

func (s *Store) DeleteCampaign(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[id]; !ok {
		return notFound("Campaign not found with id: %d", id)
	}
	delete(s.campaigns, id)
	return nil
}

// CampaignReport sums the orders placed under a campaign.
func (s *Store) CampaignReport(id int64) (domain.CampaignReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.CampaignReport{}, notFound("Campaign not found with id: %d", id)
	}
	r := domain.CampaignReport{
		CampaignID:     id,
		Title:          c.Title,
		TotalRevenue:   decimal.Zero,
		TotalSavings:   decimal.Zero,
		BudgetUtilized: decimal.Zero,
	}
	for _, o := range s.orders {
		if o.CampaignID == nil || *o.CampaignID != id {
			continue
		}
		r.TotalOrders++
		r.TotalRevenue = r.TotalRevenue.Add(o.TotalAmount)
		if o.CampaignSavings != nil {
			r.TotalSavings = r.TotalSavings.Add(*o.CampaignSavings)
		}
		for _, it := range o.OrderItems {
			if it.OriginalPrice != nil {
				r.UnitsSold += int64(it.Quantity)
			}
		}
	}
	r.BudgetUtilized = r.TotalSavings
	return r, nil
}

// LoyaltyAccounts lists every account without transactions, by user id.
func (s *Store) LoyaltyAccounts() []domain.LoyaltyAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.LoyaltyAccount{}
	for _, a := range s.accounts {
		acc := a.loyalty
		acc.UserPhone = a.user.Phone
		acc.RecentTransactions = nil
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// LoyaltyUserDetails is the account with contact details and transactions.
func (s *Store) LoyaltyUserDetails(userID int64) (domain.LoyaltyAccount, error) {
	acc, err := s.LoyaltyAccount(userID)
	if err != nil {
		return domain.LoyaltyAccount{}, err
	}
	u, err := s.User(userID)
	if err == nil {
		acc.UserPhone = u.Phone
	}
	return acc, nil
}

func (s *Store) LoyaltyStats() domain.LoyaltyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out domain.LoyaltyStats
	for _, a := range s.accounts {
		out.TotalAccounts++
		out.TotalPointsIssued += int64(a.loyalty.TotalEarned)
		out.ActivePointsBalance += int64(a.loyalty.PointsBalance)
		for _, tx := range a.loyalty.RecentTransactions {
			if tx.Points < 0 {
				out.TotalPointsRedeemed -= int64(tx.Points)
			}
		}
	}
	return out
}
