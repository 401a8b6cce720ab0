package mockapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidOTP is the one-time password the simulated UPI gateway accepts.
const ValidOTP = "123456"

const (
	pointsPerHundred = 10
	rewardPrefix     = "REWARD-"
)

// Error is a rejection with the HTTP status the handler should send.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func notFound(format string, args ...any) *Error {
	return &Error{Status: 404, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) *Error {
	return &Error{Status: 400, Message: fmt.Sprintf(format, args...)}
}

type account struct {
	user     domain.User
	password string
	loyalty  domain.LoyaltyAccount
}

type coupon struct {
	userID int64
	amount decimal.Decimal
	usedBy int64
}

// Store holds the simulated backend state. All methods are safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]*domain.Product
	orders    map[int64]*domain.Order
	payments  map[int64]*domain.Payment
	accounts  map[int64]*account
	tokens    map[string]int64
	coupons   map[string]*coupon
	campaigns map[int64]*campaign
	inventory map[int64]*domain.StoreInventory
	stores    []string

	nextOrderID     int64
	nextPaymentID   int64
	nextTxID        int64
	nextInventoryID int64
	now             func() time.Time
}

type campaign struct {
	domain.Campaign
	products []domain.CampaignProduct
}

func NewStore() *Store {
	return &Store{
		products:  make(map[int64]*domain.Product),
		orders:    make(map[int64]*domain.Order),
		payments:  make(map[int64]*domain.Payment),
		accounts:  make(map[int64]*account),
		tokens:    make(map[string]int64),
		coupons:   make(map[string]*coupon),
		campaigns: make(map[int64]*campaign),
		inventory: make(map[int64]*domain.StoreInventory),
		now:       time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddProduct inserts or replaces a product.
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.IsActive = true
	s.products[p.ProductID] = &p
}

// AddUser registers a user that can log in with password.
func (s *Store) AddUser(u domain.User, password string, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[u.UserID] = &account{
		user:     u,
		password: password,
		loyalty: domain.LoyaltyAccount{
			LoyaltyAccountID: u.UserID,
			UserID:           u.UserID,
			UserName:         u.Name,
			UserEmail:        u.Email,
			PointsBalance:    points,
			TotalEarned:      points,
		},
	}
}

// AddCoupon issues a reward code worth amount to userID.
func (s *Store) AddCoupon(code string, userID int64, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[code] = &coupon{userID: userID, amount: amount}
}

// AddCampaign registers a campaign with its discounted products.
func (s *Store) AddCampaign(c domain.Campaign, products ...domain.CampaignProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.CampaignID] = &campaign{Campaign: c, products: products}
}

// AddStore registers a pickup location.
func (s *Store) AddStore(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = append(s.stores, location)
}

func (s *Store) StoreLocations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.stores...)
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterProducts(func(*domain.Product) bool { return true })
}

func (s *Store) Product(id int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, notFound("Product not found with id: %d", id)
	}
	return *p, nil
}

// SearchProducts matches name case-insensitively as a substring.
func (s *Store) SearchProducts(name string) []domain.Product {
	needle := strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterProducts(func(p *domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle)
	})
}

func (s *Store) ProductsByCategory(category string) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterProducts(func(p *domain.Product) bool {
		return strings.EqualFold(p.Category, category)
	})
}

func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range s.products {
		if _, ok := seen[p.Category]; ok || p.Category == "" {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

func (s *Store) filterProducts(keep func(*domain.Product) bool) []domain.Product {
	out := []domain.Product{}
	for _, p := range s.products {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Login returns a fresh token for the user with the given credentials.
func (s *Store) Login(email, password string) (domain.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, email) && a.password == password {
			return s.issueToken(a.user), nil
		}
	}
	return domain.AuthResponse{}, &Error{Status: 401, Message: "Invalid email or password"}
}

// Signup registers a customer with an empty loyalty account and signs them in.
func (s *Store) Signup(req domain.SignupRequest) (domain.AuthResponse, error) {
	if blank(&req.Name) || blank(&req.Email) || req.Password == "" {
		return domain.AuthResponse{}, invalid("Name, email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var lastID int64
	for id, a := range s.accounts {
		if strings.EqualFold(a.user.Email, req.Email) {
			return domain.AuthResponse{}, invalid("Email already registered")
		}
		lastID = max(lastID, id)
	}

	u := domain.User{
		UserID: lastID + 1,
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
		Phone:  req.Phone,
		Role:   domain.RoleCustomer,
	}
	s.accounts[u.UserID] = &account{
		user:     u,
		password: req.Password,
		loyalty:  domain.LoyaltyAccount{LoyaltyAccountID: u.UserID, UserID: u.UserID, UserName: u.Name, UserEmail: u.Email},
	}
	return s.issueToken(u), nil
}

func (s *Store) issueToken(u domain.User) domain.AuthResponse {
	token := "mock-" + uuid.NewString()
	s.tokens[token] = u.UserID
	return domain.AuthResponse{
		Token:  token,
		UserID: u.UserID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
	}
}

// UserByToken resolves a bearer token issued by Login.
func (s *Store) UserByToken(token string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return domain.User{}, false
	}
	return s.accounts[id].user, true
}

func (s *Store) User(id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.User{}, notFound("User not found with id: %d", id)
	}
	return a.user, nil
}

// CreateOrder prices the order from the catalog, applies campaign prices and
// a reward code, and reserves stock. Nothing changes when any check fails.
func (s *Store) CreateOrder(req domain.CreateOrderRequest) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderType := domain.OrderType(strings.ToUpper(string(req.OrderType)))
	switch orderType {
	case domain.OrderTypeOnline:
		if blank(req.ShippingAddress) {
			return domain.Order{}, invalid("Shipping address is required for online orders")
		}
	case domain.OrderTypeInStore:
		if blank(req.StoreLocation) {
			return domain.Order{}, invalid("Store location is required for in-store orders")
		}
		if !s.hasStore(*req.StoreLocation) {
			return domain.Order{}, invalid("Unknown store location: %s", *req.StoreLocation)
		}
	default:
		return domain.Order{}, invalid("Order type must be either ONLINE or IN_STORE")
	}
	if len(req.OrderItems) == 0 {
		return domain.Order{}, invalid("Order must contain at least one item")
	}

	var camp *campaign
	if req.CampaignID != nil {
		camp = s.campaigns[*req.CampaignID]
	}

	items := make([]domain.OrderItem, 0, len(req.OrderItems))
	need := make(map[int64]int)
	subtotal := decimal.Zero
	savings := decimal.Zero
	for _, it := range req.OrderItems {
		p, ok := s.products[it.ProductID]
		if !ok {
			return domain.Order{}, notFound("Product not found with id: %d", it.ProductID)
		}
		if it.Quantity < 1 {
			return domain.Order{}, invalid("Quantity must be at least 1")
		}
		need[p.ProductID] += it.Quantity
		if p.StockQuantity != nil && need[p.ProductID] > *p.StockQuantity {
			return domain.Order{}, invalid("Insufficient stock for product: %s", p.Name)
		}

		unit := p.Price
		var original *decimal.Decimal
		if price, ok := camp.price(p.ProductID); ok {
			orig := p.Price
			original = &orig
			unit = price
			savings = savings.Add(orig.Sub(price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		line := unit.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)

		item := domain.OrderItem{
			OrderItemID:   int64(len(items) + 1),
			ProductID:     p.ProductID,
			ProductName:   p.Name,
			ProductSKU:    p.SKU,
			Quantity:      it.Quantity,
			UnitPrice:     unit,
			OriginalPrice: original,
			Subtotal:      &line,
		}
		if orderType == domain.OrderTypeInStore {
			item.StoreLocation = *req.StoreLocation
		}
		items = append(items, item)
	}

	var cp *coupon
	var code string
	if req.DiscountCode != nil && strings.TrimSpace(*req.DiscountCode) != "" {
		code = strings.TrimSpace(*req.DiscountCode)
		res := s.validateCode(code)
		if !res.Valid {
			return domain.Order{}, invalid("%s", res.Message)
		}
		cp = s.coupons[code]
	}

	total := subtotal
	if cp != nil {
		total = total.Sub(cp.amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}

	for id, qty := range need {
		if p := s.products[id]; p.StockQuantity != nil {
			left := *p.StockQuantity - qty
			p.StockQuantity = &left
		}
	}

	s.nextOrderID++
	now := s.now()
	order := &domain.Order{
		OrderID:       s.nextOrderID,
		CustomerID:    req.CustomerID,
		OrderType:     orderType,
		Status:        domain.OrderStatusPlaced,
		TotalAmount:   total,
		PaymentStatus: string(domain.PaymentStatusPending),
		CreatedAt:     &now,
		UpdatedAt:     &now,
		OrderItems:    items,
	}
	if req.ShippingAddress != nil && orderType == domain.OrderTypeOnline {
		order.ShippingAddress = *req.ShippingAddress
	}
	if req.StoreLocation != nil && orderType == domain.OrderTypeInStore {
		order.StoreLocation = *req.StoreLocation
	}
	if cp != nil {
		cp.usedBy = order.OrderID
		amount := cp.amount
		order.DiscountCode = code
		order.DiscountAmount = &amount
	}
	if camp != nil {
		id := camp.CampaignID
		order.CampaignID = &id
		order.CampaignTitle = camp.Title
		if savings.IsPositive() {
			order.CampaignSavings = &savings
		}
	}
	s.orders[order.OrderID] = order
	return cloneOrder(order), nil
}

func (c *campaign) price(productID int64) (decimal.Decimal, bool) {
	if c == nil || !c.Active {
		return decimal.Decimal{}, false
	}
	for _, p := range c.products {
		if p.ProductID == productID {
			return p.DiscountedPrice, true
		}
	}
	return decimal.Decimal{}, false
}

func (s *Store) Order(id int64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, notFound("Order not found with id: %d", id)
	}
	return cloneOrder(o), nil
}

// Orders lists orders newest first. customerID 0 lists every order.
func (s *Store) Orders(customerID int64) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		if customerID == 0 || o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID > out[j].OrderID })
	return out
}

// CancelOrder cancels a placed or confirmed order and returns its stock.
func (s *Store) CancelOrder(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return notFound("Order not found with id: %d", id)
	}
	if !o.Status.Cancellable() {
		return invalid("Order cannot be cancelled in current status: %s", o.Status)
	}
	o.Status = domain.OrderStatusCancelled
	now := s.now()
	o.UpdatedAt = &now
	s.restoreStock(o)
	return nil
}

// restoreStock returns the units of o to the catalog. Caller holds the lock.
func (s *Store) restoreStock(o *domain.Order) {
	for _, it := range o.OrderItems {
		if p, ok := s.products[it.ProductID]; ok && p.StockQuantity != nil {
			restored := *p.StockQuantity + it.Quantity
			p.StockQuantity = &restored
		}
	}
}

// InitiatePayment records a payment attempt. Neither method completes here:
// UPI waits for ProcessPayment and COD is collected on delivery.
func (s *Store) InitiatePayment(req domain.PaymentRequest) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[req.OrderID]
	if !ok {
		return domain.Payment{}, notFound("Order not found with id: %d", req.OrderID)
	}
	method := domain.PaymentMethod(strings.ToUpper(string(req.PaymentMethod)))
	if !method.Valid() {
		return domain.Payment{}, invalid("Only UPI and COD payment methods are supported")
	}
	for _, p := range s.payments {
		if p.OrderID == o.OrderID && p.Status == domain.PaymentStatusSuccess {
			return domain.Payment{}, invalid("Payment already completed for this order")
		}
	}

	s.nextPaymentID++
	now := s.now()
	p := &domain.Payment{
		PaymentID:     s.nextPaymentID,
		OrderID:       o.OrderID,
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		PaymentMethod: method,
		Status:        domain.PaymentStatusInitiated,
		Notes:         req.Notes,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	switch method {
	case domain.PaymentMethodUPI:
		if req.UPIID != nil {
			p.UPIID = *req.UPIID
		}
	case domain.PaymentMethodCOD:
		p.Notes = "Cash on Delivery - Payment will be collected at delivery"
	}
	o.PaymentMethod = string(method)
	s.payments[p.PaymentID] = p
	return *p, nil
}

// ProcessPayment verifies the OTP of an initiated UPI payment. A wrong OTP is
// a failed payment, not an error.
func (s *Store) ProcessPayment(id int64, otp string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, notFound("Payment not found with id: %d", id)
	}
	if p.Status != domain.PaymentStatusInitiated {
		return domain.Payment{}, invalid("Payment is not in INITIATED status")
	}
	if p.PaymentMethod != domain.PaymentMethodUPI {
		return domain.Payment{}, invalid("Only UPI payments require OTP processing")
	}

	p.Status, p.FailureReason = otpStatus(otp)
	now := s.now()
	p.UpdatedAt = &now

	o := s.orders[p.OrderID]
	if p.Status == domain.PaymentStatusSuccess {
		s.nextTxID++
		p.TransactionID = fmt.Sprintf("TXN%d%04d", now.UnixMilli(), s.nextTxID)
		p.Notes = "UPI payment successful via " + p.UPIID
		if o != nil {
			o.PaymentStatus = "COMPLETED"
			s.awardPoints(o.CustomerID, o.OrderID, o.TotalAmount)
		}
	} else if o != nil {
		o.PaymentStatus = string(domain.PaymentStatusFailed)
	}
	return *p, nil
}

// otpStatus is the simulated UPI gateway decision.
func otpStatus(otp string) (domain.PaymentStatus, string) {
	if otp == ValidOTP {
		return domain.PaymentStatusSuccess, ""
	}
	return domain.PaymentStatusFailed, "Invalid OTP. Payment failed."
}

func (s *Store) Payment(id int64) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, notFound("Payment not found with id: %d", id)
	}
	return *p, nil
}

func (s *Store) PaymentsByOrder(orderID int64) []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Payment{}
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out
}

// awardPoints grants 10 points per full 100 paid. Caller holds the lock.
func (s *Store) awardPoints(userID, orderID int64, amount decimal.Decimal) {
	a, ok := s.accounts[userID]
	if !ok {
		return
	}
	points := int(amount.IntPart()/100) * pointsPerHundred
	if points <= 0 {
		return
	}
	a.loyalty.PointsBalance += points
	a.loyalty.TotalEarned += points
	id := orderID
	s.addTransaction(a, domain.LoyaltyTransaction{
		OrderID:     &id,
		Points:      points,
		Type:        "EARNED",
		Description: fmt.Sprintf("Points earned from Order #%d", orderID),
	})
}

func (s *Store) addTransaction(a *account, tx domain.LoyaltyTransaction) {
	now := s.now()
	tx.TransactionID = int64(len(a.loyalty.RecentTransactions) + 1)
	tx.CreatedAt = &now
	a.loyalty.RecentTransactions = append([]domain.LoyaltyTransaction{tx}, a.loyalty.RecentTransactions...)
	a.loyalty.UpdatedAt = &now
}

func (s *Store) LoyaltyAccount(userID int64) (domain.LoyaltyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[userID]
	if !ok {
		return domain.LoyaltyAccount{}, notFound("Loyalty account not found for user: %d", userID)
	}
	out := a.loyalty
	out.RecentTransactions = append([]domain.LoyaltyTransaction(nil), a.loyalty.RecentTransactions...)
	return out, nil
}

// rewardValue maps a reward name to its discount.
func rewardValue(name string) decimal.Decimal {
	// Larger amounts first: "150 Off" contains "50 Off".
	for _, v := range []int64{500, 150, 50} {
		if strings.Contains(name, fmt.Sprintf("%d Off", v)) {
			return decimal.NewFromInt(v)
		}
	}
	return decimal.Zero
}

// Redeem spends points on a reward and issues a single-use discount code.
func (s *Store) Redeem(req domain.RedeemRequest) (domain.RedeemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[req.UserID]
	if !ok {
		return domain.RedeemResult{}, notFound("Loyalty account not found for user: %d", req.UserID)
	}
	value := rewardValue(req.RewardName)
	if req.Points <= 0 || value.IsZero() {
		return domain.RedeemResult{}, invalid("Unknown reward: %s", req.RewardName)
	}
	if a.loyalty.PointsBalance < req.Points {
		return domain.RedeemResult{}, invalid("Insufficient points balance. Required: %d, Available: %d", req.Points, a.loyalty.PointsBalance)
	}

	a.loyalty.PointsBalance -= req.Points
	code := rewardPrefix + strconv.FormatInt(req.UserID, 10) + "-" + strconv.FormatInt(s.now().UnixNano(), 10)
	s.coupons[code] = &coupon{userID: req.UserID, amount: value}
	s.addTransaction(a, domain.LoyaltyTransaction{
		Points:      -req.Points,
		Type:        "REDEEMED",
		Description: fmt.Sprintf("Redeemed: %s (Code: %s)", req.RewardName, code),
	})
	return domain.RedeemResult{
		Success:        true,
		Message:        "Reward redeemed successfully",
		DiscountCode:   code,
		PointsRedeemed: req.Points,
		RewardName:     req.RewardName,
	}, nil
}

func (s *Store) ValidateCode(code string) domain.DiscountValidation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateCode(code)
}

// validateCode checks a REWARD-{userId}-{timestamp} code. Caller holds the lock.
func (s *Store) validateCode(code string) domain.DiscountValidation {
	parts := strings.Split(code, "-")
	if !strings.HasPrefix(code, rewardPrefix) || len(parts) != 3 {
		return domain.DiscountValidation{Message: "Invalid discount code format"}
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return domain.DiscountValidation{Message: "Invalid discount code format"}
	}
	c, ok := s.coupons[code]
	if ok && c.usedBy != 0 {
		return domain.DiscountValidation{Message: "This discount code has already been used"}
	}
	if !ok || c.userID != userID {
		return domain.DiscountValidation{Message: "Discount code not found or already used"}
	}
	return domain.DiscountValidation{
		Valid:          true,
		DiscountAmount: c.amount,
		Message:        "Discount code is valid",
		Code:           code,
	}
}

// ActiveCoupon returns the user's oldest unused code.
func (s *Store) ActiveCoupon(userID int64) domain.ActiveCoupon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var codes []string
	for code, c := range s.coupons {
		if c.userID == userID && c.usedBy == 0 {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return domain.ActiveCoupon{}
	}
	sort.Strings(codes)
	return domain.ActiveCoupon{HasCoupon: true, CouponCode: codes[0]}
}

func (s *Store) ActiveCampaigns() []domain.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Campaign{}
	for _, c := range s.campaigns {
		if c.Active {
			out = append(out, c.Campaign)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out
}

func (s *Store) Campaign(id int64) (domain.Campaign, []domain.CampaignProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, nil, notFound("Campaign not found with id: %d", id)
	}
	return c.Campaign, append([]domain.CampaignProduct(nil), c.products...), nil
}

func cloneOrder(o *domain.Order) domain.Order {
	out := *o
	out.OrderItems = append([]domain.OrderItem(nil), o.OrderItems...)
	return out
}

func (s *Store) hasStore(location string) bool {
	for _, l := range s.stores {
		if strings.EqualFold(l, strings.TrimSpace(location)) {
			return true
		}
	}
	return false
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
