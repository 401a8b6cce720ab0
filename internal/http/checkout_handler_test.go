package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/checkout"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/events"
	"github.com/fjod/shopsphere/internal/mockapi"
	"github.com/fjod/shopsphere/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeShopper struct {
	mu   sync.RWMutex
	user *domain.User
	subs []chan struct{}
}

func (f *fakeShopper) CurrentUser() (*domain.User, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.user == nil {
		return nil, false
	}
	u := *f.user
	return &u, true
}

func (f *fakeShopper) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeShopper) signOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = nil
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type recordingPublisher struct {
	mu     sync.RWMutex
	events []events.CheckoutEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type gateway struct {
	url       string
	cart      *cart.Store
	storage   *storage.MemoryStore
	backend   *mockapi.Store
	sessions  *Registry
	shopper   *fakeShopper
	publisher *recordingPublisher
}

type gatewaySetup struct {
	requestTimeout time.Duration
	orders         func(checkout.OrderService) checkout.OrderService
}

// setupGateway runs the storefront gateway against a seeded simulated backend,
// signed in as the demo customer.
func setupGateway(t *testing.T, opts ...func(*gatewaySetup)) *gateway {
	t.Helper()
	cfg := gatewaySetup{
		requestTimeout: 10 * time.Second,
		orders:         func(o checkout.OrderService) checkout.OrderService { return o },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := mockapi.NewStore()
	mockapi.Seed(store)
	backend := httptest.NewServer(mockapi.NewServer(store, zerolog.Nop()))
	t.Cleanup(backend.Close)

	client := api.New(backend.URL+"/api", zerolog.Nop())
	st := storage.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	c := cart.New(st, zerolog.Nop())
	cat := catalog.New(client, catalog.NewMemoryCache(time.Minute), zerolog.Nop())
	sessions := NewRegistry()
	t.Cleanup(sessions.Close)
	shopper := &fakeShopper{user: &domain.User{UserID: mockapi.CustomerID, Name: "Asha Rao", Role: domain.RoleCustomer}}
	pub := &recordingPublisher{}

	checkoutHandler := NewCheckoutHandler(CheckoutDeps{
		Cart:      c,
		Pricer:    cat,
		Shopper:   shopper,
		Orders:    cfg.orders(client),
		Payments:  client,
		Discounts: client,
		Publisher: pub,
		Sessions:  sessions,
		Config:    checkout.Config{CallTimeout: 2 * time.Second, SuccessDelay: 10 * time.Millisecond},
		Log:       zerolog.Nop(),
	}, 5*time.Second)

	router := NewRouter(Handlers{
		Cart:     NewCartHandler(c, cat, 5*time.Second),
		Checkout: checkoutHandler,
		Products: NewProductHandler(client, cat, 5*time.Second),
		Orders:   NewOrdersHandler(client, shopper, 5*time.Second),
		Events:   NewEventsHandler(c, shopper, zerolog.Nop()),
	}, cfg.requestTimeout, zerolog.Nop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &gateway{
		url:       srv.URL,
		cart:      c,
		storage:   st,
		backend:   store,
		sessions:  sessions,
		shopper:   shopper,
		publisher: pub,
	}
}

// call sends body as JSON and decodes the response into out when it is non-nil.
func (g *gateway) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, g.url+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (g *gateway) addToCart(t *testing.T, productID int64, quantity int) {
	t.Helper()
	status := g.call(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: productID, Quantity: quantity}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func (g *gateway) open(t *testing.T, req InitiateCheckoutRequestDTO) CheckoutResponseDTO {
	t.Helper()
	var resp CheckoutResponseDTO
	status := g.call(t, http.MethodPost, "/api/v1/checkout", req, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func (g *gateway) send(t *testing.T, id string, ev CheckoutEventDTO) CheckoutResponseDTO {
	t.Helper()
	var resp CheckoutResponseDTO
	status := g.call(t, http.MethodPost, "/api/v1/checkout/"+id+"/events", ev, &resp)
	require.Equal(t, http.StatusOK, status)
	return resp
}

func online() InitiateCheckoutRequestDTO {
	return InitiateCheckoutRequestDTO{OrderType: domain.OrderTypeOnline, ShippingAddress: "12 MG Road, Bengaluru"}
}

func TestCheckout_CODClearsCartAfterSuccess(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 2)

	opened := g.open(t, online())
	assert.Equal(t, checkout.StepMethod, opened.Step)
	assert.True(t, opened.Subtotal.Equal(decimal.NewFromInt(1198)), opened.Subtotal.String())
	require.NotNil(t, opened.Discount, "loyalty coupon is applied when checkout opens")
	assert.Equal(t, mockapi.CustomerCoupon, opened.Discount.Code)
	assert.True(t, opened.Amount.Equal(decimal.NewFromInt(1148)), opened.Amount.String())

	done := g.send(t, opened.CheckoutID, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD})
	assert.Equal(t, checkout.StepSuccess, done.Step)
	assert.NotZero(t, done.OrderID)
	assert.Equal(t, domain.PaymentStatusInitiated, done.PaymentStatus)

	require.Eventually(t, func() bool { return g.sessions.Len() == 0 }, waitFor, tick)
	assert.Equal(t, 0, g.cart.Count(context.Background()))

	order, err := g.backend.Order(done.OrderID)
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1148)), order.TotalAmount.String())
	assert.Equal(t, mockapi.CustomerCoupon, order.DiscountCode)

	// the cached product was dropped, so stock is fresh
	var product ProductResponse
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/products/1", nil, &product))
	require.NotNil(t, product.Stock)
	assert.Equal(t, 48, *product.Stock)

	assert.Equal(t, []events.Type{events.CheckoutSucceeded}, g.publisher.types())
}

func TestCheckout_UPIRetryAfterWrongOTP(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 3, 1)

	opened := g.open(t, InitiateCheckoutRequestDTO{OrderType: domain.OrderTypeInStore, StoreLocation: "Mumbai Central"})
	id := opened.CheckoutID

	st := g.send(t, id, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodUPI})
	assert.Equal(t, checkout.StepDetails, st.Step)

	st = g.send(t, id, CheckoutEventDTO{Type: "submit_details", UPIID: "not-an-id"})
	assert.Equal(t, checkout.StepDetails, st.Step)
	assert.Equal(t, checkout.MsgInvalidUPI, st.Error)
	assert.Zero(t, st.OrderID)

	st = g.send(t, id, CheckoutEventDTO{Type: "submit_details", UPIID: "asha@okbank"})
	require.Equal(t, checkout.StepOTP, st.Step)
	orderID := st.OrderID
	require.NotZero(t, orderID)

	st = g.send(t, id, CheckoutEventDTO{Type: "submit_otp", OTP: "000000"})
	assert.Equal(t, checkout.StepFailed, st.Step)
	assert.Equal(t, "Invalid OTP. Payment failed.", st.Error)

	st = g.send(t, id, CheckoutEventDTO{Type: "retry"})
	assert.Equal(t, checkout.StepMethod, st.Step)
	assert.Equal(t, orderID, st.OrderID)

	g.send(t, id, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodUPI})
	st = g.send(t, id, CheckoutEventDTO{Type: "submit_details", UPIID: "asha@okbank"})
	require.Equal(t, checkout.StepOTP, st.Step)
	st = g.send(t, id, CheckoutEventDTO{Type: "submit_otp", OTP: mockapi.ValidOTP})
	assert.Equal(t, checkout.StepSuccess, st.Step)
	assert.Equal(t, domain.PaymentStatusSuccess, st.PaymentStatus)
	assert.Equal(t, orderID, st.OrderID)

	assert.Len(t, g.backend.Orders(mockapi.CustomerID), 1, "retry reuses the order")
	assert.Len(t, g.backend.PaymentsByOrder(orderID), 2)
	require.Eventually(t, func() bool { return g.cart.Count(context.Background()) == 0 }, waitFor, tick)
	assert.Equal(t, []events.Type{events.CheckoutFailed, events.CheckoutSucceeded}, g.publisher.types())
}

func TestCheckout_ShortOTPMakesNoCall(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)
	id := g.open(t, online()).CheckoutID

	g.send(t, id, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodUPI})
	st := g.send(t, id, CheckoutEventDTO{Type: "submit_details", UPIID: "asha@okbank"})
	require.Equal(t, checkout.StepOTP, st.Step)

	st = g.send(t, id, CheckoutEventDTO{Type: "submit_otp", OTP: "12a3"})
	assert.Equal(t, checkout.StepOTP, st.Step)
	assert.Equal(t, checkout.MsgInvalidOTP, st.Error)

	payments := g.backend.PaymentsByOrder(st.OrderID)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusInitiated, payments[0].Status)
}

func TestCheckout_CancelAfterOrderPlaced(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 2, 1)
	id := g.open(t, online()).CheckoutID

	g.send(t, id, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodUPI})
	st := g.send(t, id, CheckoutEventDTO{Type: "submit_details", UPIID: "asha@okbank"})
	require.NotZero(t, st.OrderID)

	var cancelled CheckoutResponseDTO
	require.Equal(t, http.StatusOK, g.call(t, http.MethodDelete, "/api/v1/checkout/"+id, nil, &cancelled))
	assert.Equal(t, checkout.StepCancelled, cancelled.Step)
	assert.Equal(t, 0, g.sessions.Len())
	assert.Equal(t, 1, g.cart.Count(context.Background()), "cancel keeps the cart")

	var resp ErrorResponse
	assert.Equal(t, http.StatusNotFound, g.call(t, http.MethodGet, "/api/v1/checkout/"+id, nil, &resp))
	assert.Equal(t, "not_found", resp.Code)
	assert.Equal(t, []events.Type{events.CheckoutCancelled}, g.publisher.types())
}

func TestCheckout_RejectedEvents(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)
	id := g.open(t, online()).CheckoutID

	var resp ErrorResponse
	assert.Equal(t, http.StatusConflict, g.call(t, http.MethodPost, "/api/v1/checkout/"+id+"/events", CheckoutEventDTO{Type: "submit_otp"}, &resp))
	assert.Equal(t, "invalid_event", resp.Code)

	resp = ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, g.call(t, http.MethodPost, "/api/v1/checkout/"+id+"/events", CheckoutEventDTO{Type: "teleport"}, &resp))
	assert.Equal(t, "invalid_event_type", resp.Code)

	resp = ErrorResponse{}
	assert.Equal(t, http.StatusNotFound, g.call(t, http.MethodPost, "/api/v1/checkout/missing/events", CheckoutEventDTO{Type: "back"}, &resp))
	assert.Equal(t, "not_found", resp.Code)

	var st CheckoutResponseDTO
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/checkout/"+id, nil, &st))
	assert.Equal(t, checkout.StepMethod, st.Step)
}

func TestInitiateCheckout_Validation(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, g *gateway)
		req     InitiateCheckoutRequestDTO
		status  int
		code    string
		message string
	}{
		{
			name:    "empty cart",
			req:     online(),
			status:  http.StatusBadRequest,
			code:    "validation_error",
			message: "Your cart is empty",
		},
		{
			name:    "missing shipping address",
			setup:   func(t *testing.T, g *gateway) { g.addToCart(t, 1, 1) },
			req:     InitiateCheckoutRequestDTO{OrderType: domain.OrderTypeOnline, ShippingAddress: "  "},
			status:  http.StatusBadRequest,
			code:    "validation_error",
			message: "Please enter your shipping address",
		},
		{
			name:    "missing store location",
			setup:   func(t *testing.T, g *gateway) { g.addToCart(t, 1, 1) },
			req:     InitiateCheckoutRequestDTO{OrderType: domain.OrderTypeInStore},
			status:  http.StatusBadRequest,
			code:    "validation_error",
			message: "Please select a store location",
		},
		{
			name:    "stock exceeded",
			setup:   func(t *testing.T, g *gateway) { g.addToCart(t, 4, 6) },
			req:     online(),
			status:  http.StatusBadRequest,
			code:    "validation_error",
			message: "Insufficient stock for Steel Water Bottle",
		},
		{
			name:    "bad discount code",
			setup:   func(t *testing.T, g *gateway) { g.addToCart(t, 1, 1) },
			req:     InitiateCheckoutRequestDTO{OrderType: domain.OrderTypeOnline, ShippingAddress: "12 MG Road", DiscountCode: "SAVE10"},
			status:  http.StatusBadRequest,
			code:    "invalid_discount",
			message: "Invalid discount code format",
		},
		{
			name: "signed out",
			setup: func(t *testing.T, g *gateway) {
				g.addToCart(t, 1, 1)
				g.shopper.signOut()
			},
			req:     online(),
			status:  http.StatusUnauthorized,
			code:    "unauthorized",
			message: "Please log in to place an order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := setupGateway(t)
			if tt.setup != nil {
				tt.setup(t, g)
			}

			var resp ErrorResponse
			assert.Equal(t, tt.status, g.call(t, http.MethodPost, "/api/v1/checkout", tt.req, &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Error)
			assert.Equal(t, 0, g.sessions.Len())
		})
	}
}

func TestInitiateCheckout_ExplicitCodeSkipsCoupon(t *testing.T) {
	g := setupGateway(t)
	g.backend.AddCoupon("REWARD-2-1700000000999", mockapi.CustomerID, decimal.NewFromInt(150))
	g.addToCart(t, 1, 1)

	req := online()
	req.DiscountCode = " reward-2-1700000000999 "
	opened := g.open(t, req)

	require.NotNil(t, opened.Discount)
	assert.Equal(t, "REWARD-2-1700000000999", opened.Discount.Code)
	assert.True(t, opened.Amount.Equal(decimal.NewFromInt(449)), opened.Amount.String())
}

func TestValidateDiscount(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)

	var ok DiscountResponseDTO
	require.Equal(t, http.StatusOK, g.call(t, http.MethodPost, "/api/v1/checkout/discount", DiscountRequestDTO{Code: strings.ToLower(mockapi.CustomerCoupon)}, &ok))
	assert.Equal(t, mockapi.CustomerCoupon, ok.Code)
	assert.True(t, ok.Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, ok.Subtotal.Equal(decimal.NewFromInt(599)))
	assert.True(t, ok.Total.Equal(decimal.NewFromInt(549)))

	var resp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, g.call(t, http.MethodPost, "/api/v1/checkout/discount", DiscountRequestDTO{Code: "  "}, &resp))
	assert.Equal(t, "Please enter a discount code", resp.Error)

	resp = ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, g.call(t, http.MethodPost, "/api/v1/checkout/discount", DiscountRequestDTO{Code: "REWARD-9-1"}, &resp))
	assert.Equal(t, "Discount code not found or already used", resp.Error)
}

func TestOrders_ListsOnlyShopperOrders(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)
	id := g.open(t, online()).CheckoutID
	placed := g.send(t, id, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD})

	address := "1 Admin Lane"
	other, err := g.backend.CreateOrder(domain.CreateOrderRequest{
		CustomerID:      1,
		OrderType:       domain.OrderTypeOnline,
		OrderItems:      []domain.OrderItem{{ProductID: 3, Quantity: 1}},
		ShippingAddress: &address,
	})
	require.NoError(t, err)

	var list []OrderResponseDTO
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/orders", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, placed.OrderID, list[0].ID)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, "Wireless Mouse", list[0].Items[0].ProductName)

	var own OrderResponseDTO
	assert.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/orders/"+strconv.FormatInt(placed.OrderID, 10), nil, &own))
	assert.Equal(t, placed.OrderID, own.ID)

	var resp ErrorResponse
	assert.Equal(t, http.StatusNotFound, g.call(t, http.MethodGet, "/api/v1/orders/"+strconv.FormatInt(other.OrderID, 10), nil, &resp))

	g.shopper.signOut()
	resp = ErrorResponse{}
	assert.Equal(t, http.StatusUnauthorized, g.call(t, http.MethodGet, "/api/v1/orders", nil, &resp))
}

func TestProducts(t *testing.T) {
	g := setupGateway(t)

	var all ProductsResponse
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/products", nil, &all))
	assert.Len(t, all.Products, 5)

	var found ProductsResponse
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/products?q=keyboard", nil, &found))
	require.Len(t, found.Products, 1)
	assert.Equal(t, "Mechanical Keyboard", found.Products[0].Name)

	var rice ProductResponse
	require.Equal(t, http.StatusOK, g.call(t, http.MethodGet, "/api/v1/products/5", nil, &rice))
	assert.False(t, rice.InStock)

	var resp ErrorResponse
	assert.Equal(t, http.StatusNotFound, g.call(t, http.MethodGet, "/api/v1/products/999", nil, &resp))
	assert.Equal(t, "not_found", resp.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	g := setupGateway(t)

	req, err := http.NewRequest(http.MethodGet, g.url+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

type slowOrders struct {
	checkout.OrderService
	delay time.Duration
}

func (s slowOrders) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.OrderService.CreateOrder(ctx, req)
}

func TestCheckout_EventOutlastsRequestTimeout(t *testing.T) {
	g := setupGateway(t, func(s *gatewaySetup) {
		s.requestTimeout = 50 * time.Millisecond
		s.orders = func(o checkout.OrderService) checkout.OrderService {
			return slowOrders{OrderService: o, delay: 200 * time.Millisecond}
		}
	})
	g.addToCart(t, 1, 1)
	id := g.open(t, online()).CheckoutID

	var st CheckoutResponseDTO
	status := g.call(t, http.MethodPost, "/api/v1/checkout/"+id+"/events", CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD}, &st)
	require.Equal(t, http.StatusOK, status, "payment calls are bounded by the call timeout, not the request timeout")
	assert.Equal(t, checkout.StepSuccess, st.Step)
	assert.Len(t, g.backend.Orders(mockapi.CustomerID), 1)
}

func TestCheckout_NewCheckoutReplacesOpenOne(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)

	first := g.open(t, online()).CheckoutID
	second := g.open(t, online()).CheckoutID
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, g.sessions.Len())

	var resp ErrorResponse
	assert.Equal(t, http.StatusNotFound, g.call(t, http.MethodPost, "/api/v1/checkout/"+first+"/events", CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD}, &resp))
	assert.Equal(t, []events.Type{events.CheckoutCancelled}, g.publisher.types())

	done := g.send(t, second, CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD})
	assert.Equal(t, checkout.StepSuccess, done.Step)
	assert.Len(t, g.backend.Orders(mockapi.CustomerID), 1)
}

func TestCheckout_ConcurrentOpensPlaceOneOrder(t *testing.T) {
	g := setupGateway(t)
	g.addToCart(t, 1, 1)

	post := func(path string, body any) (int, CheckoutResponseDTO, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, CheckoutResponseDTO{}, err
		}
		resp, err := http.Post(g.url+path, "application/json", strings.NewReader(string(b)))
		if err != nil {
			return 0, CheckoutResponseDTO{}, err
		}
		defer resp.Body.Close()
		var out CheckoutResponseDTO
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out, nil
	}

	const n = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []string
		errs []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, opened, err := post("/api/v1/checkout", online())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if status == http.StatusCreated {
				ids = append(ids, opened.CheckoutID)
			}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	require.NotEmpty(t, ids)
	assert.Equal(t, 1, g.sessions.Len(), "each checkout replaces the one before")

	cod := CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD}
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := post("/api/v1/checkout/"+id+"/events", cod)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	assert.Len(t, g.backend.Orders(mockapi.CustomerID), 1)
}

func TestCheckout_OpenWhilePaymentRunsIsRejected(t *testing.T) {
	g := setupGateway(t, func(s *gatewaySetup) {
		s.orders = func(o checkout.OrderService) checkout.OrderService {
			return slowOrders{OrderService: o, delay: 300 * time.Millisecond}
		}
	})
	g.addToCart(t, 1, 1)
	id := g.open(t, online()).CheckoutID

	body, err := json.Marshal(CheckoutEventDTO{Type: "select_method", Method: domain.PaymentMethodCOD})
	require.NoError(t, err)
	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(g.url+"/api/v1/checkout/"+id+"/events", "application/json", strings.NewReader(string(body)))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		var st CheckoutResponseDTO
		g.call(t, http.MethodGet, "/api/v1/checkout/"+id, nil, &st)
		return st.Step == checkout.StepProcessing
	}, waitFor, tick)

	var resp ErrorResponse
	assert.Equal(t, http.StatusConflict, g.call(t, http.MethodPost, "/api/v1/checkout", online(), &resp))
	assert.Equal(t, "checkout_in_progress", resp.Code)

	assert.Equal(t, http.StatusOK, <-done)
	assert.Len(t, g.backend.Orders(mockapi.CustomerID), 1)
}
