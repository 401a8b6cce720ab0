// Package mockapi simulates the ShopSphere REST API for tests and local demos.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Server struct {
	store *Store
	log   zerolog.Logger
	// processDelay simulates the gateway round trip of an OTP check.
	processDelay time.Duration
	router       chi.Router
}

type Option func(*Server)

// WithProcessDelay makes OTP verification take d.
func WithProcessDelay(d time.Duration) Option {
	return func(s *Server) { s.processDelay = d }
}

// NewServer serves store under /api.
func NewServer(store *Store, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		store: store,
		log:   log.With().Str("component", "mockapi").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/signup", s.signup)
		r.Get("/users/profile", s.profile)
		r.Get("/users/{id}", s.user)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.listProducts)
			r.Get("/search", s.searchProducts)
			r.Get("/categories", s.categories)
			r.Get("/category/{category}", s.productsByCategory)
			r.Get("/{id}", s.product)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/", s.createProduct)
				r.Put("/{id}", s.updateProduct)
				r.Delete("/{id}", s.deleteProduct)
				r.Patch("/{id}/stock", s.updateProductStock)
				r.Get("/low-stock", s.lowStockProducts)
				r.Get("/low-stock/count", s.lowStockCount)
				r.Get("/available-for-campaign", s.productsAvailableForCampaign)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.listOrders)
			r.Post("/", s.createOrder)
			r.Get("/customer/{id}", s.ordersByCustomer)
			r.Get("/{id}", s.order)
			r.Delete("/{id}", s.cancelOrder)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/status/{status}", s.ordersByStatus)
				r.Get("/recent", s.recentOrders)
				r.Patch("/{id}/status", s.updateOrderStatus)
				r.Patch("/{id}/payment-status", s.updateOrderPaymentStatus)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", s.initiatePayment)
			r.Post("/{id}/process", s.processPayment)
			r.Get("/order/{id}", s.paymentsByOrder)
			r.Get("/{id}", s.payment)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.listPayments)
				r.Get("/customer/{id}", s.paymentsByCustomer)
				r.Get("/status/{status}", s.paymentsByStatus)
			})
		})

		r.Route("/store-inventory", func(r chi.Router) {
			r.Get("/stores", s.storeLocations)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/", s.upsertInventory)
				r.Get("/product/{id}", s.inventoryByProduct)
				r.Get("/product/{id}/stores", s.storesWithProduct)
				r.Get("/product/{id}/store/{store}", s.inventoryAt)
				r.Get("/product/{id}/store/{store}/available", s.productAvailable)
				r.Patch("/product/{id}/store/{store}/stock", s.updateStoreStock)
				r.Get("/store/{store}", s.inventoryByStore)
				r.Get("/store/{store}/low-stock", s.lowStockAtStore)
				r.Delete("/{id}", s.deleteInventory)
			})
		})

		r.With(s.requireAdmin).Get("/analytics/sales", s.salesAnalytics)

		r.Route("/loyalty", func(r chi.Router) {
			r.Post("/redeem", s.redeem)
			r.Get("/validate-code/{code}", s.validateCode)
			r.Get("/active-coupon/{id}", s.activeCoupon)
			r.Get("/{id}", s.loyaltyAccount)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/all", s.loyaltyAccounts)
				r.Get("/user/{id}", s.loyaltyUserDetails)
				r.Get("/stats", s.loyaltyStats)
			})
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/active", s.activeCampaigns)
			r.Get("/{id}/products", s.campaignProducts)
			r.Get("/{id}", s.campaign)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.listCampaigns)
				r.Post("/", s.createCampaign)
				r.Put("/{id}", s.updateCampaign)
				r.Delete("/{id}", s.deleteCampaign)
				r.Get("/{id}/report", s.campaignReport)
			})
		})
	})
	return r
}

// apiResponse is the backend's {success, message, data} envelope.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondOK(w http.ResponseWriter, status int, message string, data any) {
	s.respondJSON(w, status, apiResponse{Success: true, Message: message, Data: data})
}

// respondError sends err inside the envelope.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		s.log.Error().Err(err).Msg("unexpected error")
		e = &Error{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
	s.respondJSON(w, e.Status, apiResponse{Success: false, Message: e.Message})
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("Invalid id: %s", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	res, err := s.store.Login(req.Email, req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Login successful", res)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	res, err := s.store.Signup(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusCreated, "User registered successfully", res)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	u, ok := s.store.UserByToken(token)
	if !ok {
		s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	s.respondJSON(w, http.StatusOK, u)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	u, err := s.store.User(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, u)
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Products retrieved successfully", s.store.Products())
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, http.StatusOK, "Search results", s.store.SearchProducts(r.URL.Query().Get("name")))
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Categories retrieved successfully", s.store.Categories())
}

func (s *Server) productsByCategory(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, http.StatusOK, "Products retrieved successfully", s.store.ProductsByCategory(chi.URLParam(r, "category")))
}

func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.store.Product(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Product retrieved successfully", p)
}

func (s *Server) listOrders(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Orders retrieved successfully", s.store.Orders(0))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	o, err := s.store.CreateOrder(req)
	if err != nil {
		s.log.Info().Err(err).Int64("customer_id", req.CustomerID).Msg("order rejected")
		s.respondError(w, err)
		return
	}
	s.log.Info().Int64("order_id", o.OrderID).Str("total", o.TotalAmount.String()).Msg("order created")
	s.respondOK(w, http.StatusCreated, "Order created successfully", o)
}

func (s *Server) ordersByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Orders retrieved successfully", s.store.Orders(id))
}

func (s *Server) order(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	o, err := s.store.Order(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Order retrieved successfully", o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.CancelOrder(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Order cancelled successfully", nil)
}

func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	p, err := s.store.InitiatePayment(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusCreated, "Payment initiated successfully", p)
}

func (s *Server) processPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if s.processDelay > 0 {
		if err := sleep(r.Context(), s.processDelay); err != nil {
			return
		}
	}
	p, err := s.store.ProcessPayment(id, r.URL.Query().Get("otp"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	msg := "Payment processed successfully"
	if p.Status != domain.PaymentStatusSuccess {
		msg = p.FailureReason
	}
	s.respondOK(w, http.StatusOK, msg, p)
}

func (s *Server) paymentsByOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Payments retrieved successfully", s.store.PaymentsByOrder(id))
}

func (s *Server) payment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.store.Payment(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Payment retrieved successfully", p)
}

func (s *Server) storeLocations(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Store locations retrieved successfully", s.store.StoreLocations())
}

// Loyalty and campaign endpoints return raw bodies.

func (s *Server) rawError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Status: http.StatusInternalServerError, Message: err.Error()}
	}
	s.respondJSON(w, e.Status, map[string]any{"success": false, "message": e.Message})
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	var req domain.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.rawError(w, invalid("Invalid request body"))
		return
	}
	res, err := s.store.Redeem(req)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// validateCode ignores orderTotal; a discount above the total floors the
// order amount at zero.
func (s *Server) validateCode(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.ValidateCode(chi.URLParam(r, "code")))
}

func (s *Server) activeCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondJSON(w, http.StatusOK, domain.ActiveCoupon{})
		return
	}
	s.respondJSON(w, http.StatusOK, s.store.ActiveCoupon(id))
}

func (s *Server) loyaltyAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	a, err := s.store.LoyaltyAccount(id)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) activeCampaigns(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.ActiveCampaigns())
}

func (s *Server) campaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	c, _, err := s.store.Campaign(id)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) campaignProducts(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	_, products, err := s.store.Campaign(id)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, products)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
