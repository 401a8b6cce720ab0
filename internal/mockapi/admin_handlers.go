package mockapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/go-chi/chi/v5"
)

// requireAdmin admits requests whose bearer token belongs to an admin.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		u, ok := s.store.UserByToken(token)
		switch {
		case !ok:
			s.respondError(w, &Error{Status: http.StatusUnauthorized, Message: "Authentication required"})
		case u.Role != domain.RoleAdmin:
			s.respondError(w, &Error{Status: http.StatusForbidden, Message: "Admin access required"})
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func storeParam(r *http.Request) string {
	raw := chi.URLParam(r, "store")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid("Invalid %s: %s", name, v)
	}
	return n, nil
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	out, err := s.store.CreateProduct(p)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.log.Info().Int64("product_id", out.ProductID).Msg("product created")
	s.respondOK(w, http.StatusCreated, "Product created successfully", out)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	out, err := s.store.UpdateProduct(id, p)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Product updated successfully", out)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.DeleteProduct(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Product deleted successfully", nil)
}

func (s *Server) updateProductStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		s.respondError(w, invalid("Quantity is required"))
		return
	}
	out, err := s.store.UpdateProductStock(id, *body.Quantity)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Stock updated successfully", out)
}

func (s *Server) lowStockProducts(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Low stock products retrieved successfully", s.store.LowStockProducts())
}

func (s *Server) lowStockCount(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, http.StatusOK, "Low stock count retrieved successfully", len(s.store.LowStockProducts()))
}

func (s *Server) productsAvailableForCampaign(w http.ResponseWriter, r *http.Request) {
	var campaignID int64
	if v := r.URL.Query().Get("campaignId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, invalid("Invalid campaignId: %s", v))
			return
		}
		campaignID = id
	}
	s.respondOK(w, http.StatusOK, "Available products retrieved successfully", s.store.ProductsAvailableForCampaign(campaignID))
}

func (s *Server) ordersByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(strings.ToUpper(chi.URLParam(r, "status")))
	s.respondOK(w, http.StatusOK, "Orders retrieved successfully", s.store.OrdersByStatus(status))
}

func (s *Server) recentOrders(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 7)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Recent orders retrieved successfully", s.store.RecentOrders(days))
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req domain.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	o, err := s.store.UpdateOrderStatus(id, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.log.Info().Int64("order_id", id).Str("status", string(o.Status)).Msg("order status updated")
	s.respondOK(w, http.StatusOK, "Order status updated successfully", o)
}

func (s *Server) updateOrderPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	o, err := s.store.UpdateOrderPaymentStatus(id, domain.PaymentStatus(r.URL.Query().Get("paymentStatus")))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Payment status updated successfully", o)
}

func (s *Server) listPayments(w http.ResponseWriter, _ *http.Request) {
	all := s.store.PaymentsWhere(func(*domain.Payment) bool { return true })
	s.respondOK(w, http.StatusOK, "Payments retrieved successfully", all)
}

func (s *Server) paymentsByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := s.store.PaymentsWhere(func(p *domain.Payment) bool { return p.CustomerID == id })
	s.respondOK(w, http.StatusOK, "Payments retrieved successfully", out)
}

func (s *Server) paymentsByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.PaymentStatus(strings.ToUpper(chi.URLParam(r, "status")))
	out := s.store.PaymentsWhere(func(p *domain.Payment) bool { return p.Status == status })
	s.respondOK(w, http.StatusOK, "Payments retrieved successfully", out)
}

func (s *Server) upsertInventory(w http.ResponseWriter, r *http.Request) {
	var inv domain.StoreInventory
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		s.respondError(w, invalid("Invalid request body"))
		return
	}
	out, err := s.store.UpsertInventory(inv)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Inventory saved successfully", out)
}

func (s *Server) inventoryByProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := s.store.InventoryWhere(func(inv *domain.StoreInventory) bool { return inv.ProductID == id })
	s.respondOK(w, http.StatusOK, "Inventory retrieved successfully", out)
}

func (s *Server) inventoryByStore(w http.ResponseWriter, r *http.Request) {
	store := storeParam(r)
	out := s.store.InventoryWhere(func(inv *domain.StoreInventory) bool {
		return strings.EqualFold(inv.StoreLocation, store)
	})
	s.respondOK(w, http.StatusOK, "Inventory retrieved successfully", out)
}

func (s *Server) inventoryAt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	inv, err := s.store.InventoryAt(id, storeParam(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Inventory retrieved successfully", inv)
}

func (s *Server) storesWithProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	stores := []string{}
	for _, inv := range s.store.InventoryWhere(func(inv *domain.StoreInventory) bool {
		return inv.ProductID == id && inv.StockQuantity > 0 && (inv.IsAvailable == nil || *inv.IsAvailable)
	}) {
		stores = append(stores, inv.StoreLocation)
	}
	s.respondOK(w, http.StatusOK, "Stores retrieved successfully", stores)
}

func (s *Server) productAvailable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Availability checked", s.store.ProductAvailable(id, storeParam(r)))
}

func (s *Server) updateStoreStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	qty, err := intQuery(r, "quantity", -1)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.UpdateStoreStock(id, storeParam(r), qty); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Stock updated successfully", nil)
}

func (s *Server) lowStockAtStore(w http.ResponseWriter, r *http.Request) {
	threshold, err := intQuery(r, "threshold", LowStockThreshold)
	if err != nil {
		s.respondError(w, err)
		return
	}
	store := storeParam(r)
	out := s.store.InventoryWhere(func(inv *domain.StoreInventory) bool {
		return strings.EqualFold(inv.StoreLocation, store) && inv.StockQuantity <= threshold
	})
	s.respondOK(w, http.StatusOK, "Low stock items retrieved successfully", out)
}

func (s *Server) deleteInventory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.DeleteInventory(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondOK(w, http.StatusOK, "Inventory deleted successfully", nil)
}

// Analytics, campaign and loyalty admin endpoints return raw bodies.

func (s *Server) salesAnalytics(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.SalesAnalytics())
}

func (s *Server) listCampaigns(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Campaigns())
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.rawError(w, invalid("Invalid request body"))
		return
	}
	c, err := s.store.CreateCampaign(req)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.log.Info().Int64("campaign_id", c.CampaignID).Bool("active", c.Active).Msg("campaign created")
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.rawError(w, invalid("Invalid request body"))
		return
	}
	c, err := s.store.UpdateCampaign(id, req)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	if err := s.store.DeleteCampaign(id); err != nil {
		s.rawError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) campaignReport(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	rep, err := s.store.CampaignReport(id)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rep)
}

func (s *Server) loyaltyAccounts(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.LoyaltyAccounts())
}

func (s *Server) loyaltyUserDetails(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.rawError(w, err)
		return
	}
	a, err := s.store.LoyaltyUserDetails(id)
	if err != nil {
		s.rawError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) loyaltyStats(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.LoyaltyStats())
}
