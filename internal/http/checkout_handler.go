package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/checkout"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Shopper reports who is signed in on this storefront.
type Shopper interface {
	CurrentUser() (*domain.User, bool)
}

type invalidator interface {
	Invalidate(ctx context.Context, productID int64)
}

type CheckoutDeps struct {
	Cart      *cart.Store
	Pricer    Pricer
	Shopper   Shopper
	Orders    checkout.OrderService
	Payments  checkout.PaymentService
	Discounts checkout.DiscountValidator
	Publisher events.Publisher
	Sessions  *Registry
	Config    checkout.Config
	Log       zerolog.Logger
}

type CheckoutHandler struct {
	deps    CheckoutDeps
	timeout time.Duration
	log     zerolog.Logger
}

func NewCheckoutHandler(deps CheckoutDeps, timeout time.Duration) *CheckoutHandler {
	if deps.Sessions == nil {
		deps.Sessions = NewRegistry()
	}
	return &CheckoutHandler{
		deps:    deps,
		timeout: timeout,
		log:     deps.Log.With().Str("component", "checkout_handler").Logger(),
	}
}

type DiscountRequestDTO struct {
	Code string `json:"code"`
}

type DiscountResponseDTO struct {
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"amount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

type InitiateCheckoutRequestDTO struct {
	OrderType       domain.OrderType `json:"order_type"`
	ShippingAddress string           `json:"shipping_address"`
	StoreLocation   string           `json:"store_location"`
	DiscountCode    string           `json:"discount_code"`
}

type CheckoutResponseDTO struct {
	CheckoutID    string                    `json:"checkout_id"`
	Step          checkout.Step             `json:"step"`
	Method        domain.PaymentMethod      `json:"method,omitempty"`
	UPIID         string                    `json:"upi_id,omitempty"`
	Error         string                    `json:"error,omitempty"`
	Subtotal      decimal.Decimal           `json:"subtotal"`
	Discount      *checkout.AppliedDiscount `json:"discount,omitempty"`
	DiscountError string                    `json:"discount_error,omitempty"`
	Amount        decimal.Decimal           `json:"amount"`
	OrderID       int64                     `json:"order_id,omitempty"`
	PaymentID     int64                     `json:"payment_id,omitempty"`
	PaymentStatus domain.PaymentStatus      `json:"payment_status,omitempty"`
}

type CheckoutEventDTO struct {
	Type   string               `json:"type"`
	Method domain.PaymentMethod `json:"method,omitempty"`
	UPIID  string               `json:"upi_id,omitempty"`
	OTP    string               `json:"otp,omitempty"`
}

// POST /api/v1/checkout/discount
func (h *CheckoutHandler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req DiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	rows, err := h.deps.Pricer.Price(ctx, h.deps.Cart.Lines(ctx))
	if err != nil {
		respondUpstreamError(w, err, "failed to load product details")
		return
	}
	subtotal := catalog.Subtotal(rows)

	applied, err := checkout.ApplyDiscount(ctx, h.deps.Discounts, req.Code, subtotal)
	if err != nil {
		respondDiscountError(w, err)
		return
	}

	total := subtotal.Sub(applied.Amount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	respondJSON(w, http.StatusOK, DiscountResponseDTO{
		Code:     applied.Code,
		Amount:   applied.Amount,
		Subtotal: subtotal,
		Total:    total,
	})
}

func respondDiscountError(w http.ResponseWriter, err error) {
	msg := checkout.Message(err, checkout.MsgDiscountFailed)
	if errors.Is(err, api.ErrTransport) || isTimeout(err) {
		respondError(w, http.StatusBadGateway, "upstream_error", msg)
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_discount", msg)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := h.deps.Shopper.CurrentUser()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", checkout.ErrNotSignedIn.Message)
		return
	}

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	rows, err := h.deps.Pricer.Price(ctx, h.deps.Cart.Lines(ctx))
	if err != nil {
		respondUpstreamError(w, err, "failed to load product details")
		return
	}
	draft := checkout.BuildDraft(user.UserID, rows, checkout.Fulfilment{
		OrderType:       req.OrderType,
		ShippingAddress: req.ShippingAddress,
		StoreLocation:   req.StoreLocation,
	})
	if err := draft.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", checkout.Message(err, err.Error()))
		return
	}

	var discountErr string
	if req.DiscountCode != "" {
		applied, err := checkout.ApplyDiscount(ctx, h.deps.Discounts, req.DiscountCode, draft.Subtotal())
		if err != nil {
			respondDiscountError(w, err)
			return
		}
		draft = draft.WithDiscount(applied)
	} else {
		applied, err := checkout.AutoApplyCoupon(ctx, h.deps.Discounts, user.UserID, draft.Subtotal())
		if err != nil {
			h.log.Info().Err(err).Int64("user_id", user.UserID).Msg("auto-apply coupon failed")
			discountErr = checkout.Message(err, checkout.MsgAutoDiscountFailed)
		}
		draft = draft.WithDiscount(applied)
	}

	s, err := h.open(ctx, draft)
	if err != nil {
		respondError(w, http.StatusConflict, "checkout_in_progress", "a previous checkout is still completing its payment")
		return
	}
	h.log.Info().
		Str("checkout_id", s.ID()).
		Str("request_id", getRequestID(r.Context())).
		Str("amount", s.Amount().String()).
		Msg("checkout opened")

	resp := toCheckoutDTO(s)
	resp.DiscountError = discountErr
	respondJSON(w, http.StatusCreated, resp)
}

// open starts a session for draft and makes it the only open one.
func (h *CheckoutHandler) open(ctx context.Context, draft checkout.Draft) (*checkout.Session, error) {
	var s *checkout.Session
	cb := checkout.Callbacks{
		OnSuccess: func(orderID int64) {
			ctx := context.Background()
			h.deps.Cart.Clear(ctx)
			// stock moved for every product on the order
			if inv, ok := h.deps.Pricer.(invalidator); ok {
				for _, l := range draft.Lines {
					inv.Invalidate(ctx, l.ProductID)
				}
			}
			h.deps.Sessions.Remove(s.ID())
			h.log.Info().Int64("order_id", orderID).Str("checkout_id", s.ID()).Msg("checkout completed, cart cleared")
		},
		OnCancel: func(order *domain.Order) {
			h.deps.Sessions.Remove(s.ID())
			if order != nil {
				h.log.Info().Int64("order_id", order.OrderID).Str("checkout_id", s.ID()).Msg("checkout cancelled after order was placed")
			}
		},
	}
	s = checkout.NewSession(draft, h.deps.Orders, h.deps.Payments, h.deps.Publisher, h.deps.Config, cb, h.deps.Log)
	if err := h.deps.Sessions.Replace(context.WithoutCancel(ctx), s); err != nil {
		return nil, err
	}
	return s, nil
}

// GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(s))
}

// POST /api/v1/checkout/{id}/events
func (h *CheckoutHandler) SendEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req CheckoutEventDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	evs, ok := toEvents(req)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_event_type", "unknown event type: "+req.Type)
		return
	}

	h.dispatch(w, r, s, evs...)
}

// DELETE /api/v1/checkout/{id}
func (h *CheckoutHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, s, checkout.Cancel{})
}

// dispatch applies evs in order. Remote calls outlive a disconnected client;
// each one is bounded by the session's call timeout instead.
func (h *CheckoutHandler) dispatch(w http.ResponseWriter, r *http.Request, s *checkout.Session, evs ...checkout.Event) {
	ctx := context.WithoutCancel(r.Context())
	for _, ev := range evs {
		if _, err := s.Dispatch(ctx, ev); err != nil {
			switch {
			case errors.Is(err, checkout.ErrBusy):
				respondError(w, http.StatusConflict, "checkout_busy", "a payment step is still in progress")
			case errors.Is(err, checkout.ErrInvalidEvent):
				respondError(w, http.StatusConflict, "invalid_event", "event does not apply to step "+s.State().Step.String())
			default:
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
			return
		}
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(s))
}

func (h *CheckoutHandler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	s, ok := h.deps.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "checkout not found")
		return nil, false
	}
	return s, true
}

func toEvents(req CheckoutEventDTO) ([]checkout.Event, bool) {
	switch req.Type {
	case "select_method":
		return []checkout.Event{checkout.SelectMethod{Method: req.Method}}, true
	case "enter_details":
		return []checkout.Event{checkout.EnterDetails{UPIID: req.UPIID}}, true
	case "submit_details":
		if req.UPIID != "" {
			return []checkout.Event{checkout.EnterDetails{UPIID: req.UPIID}, checkout.SubmitDetails{}}, true
		}
		return []checkout.Event{checkout.SubmitDetails{}}, true
	case "back":
		return []checkout.Event{checkout.Back{}}, true
	case "enter_otp":
		return []checkout.Event{checkout.EnterOTP{Raw: req.OTP}}, true
	case "submit_otp":
		if req.OTP != "" {
			return []checkout.Event{checkout.EnterOTP{Raw: req.OTP}, checkout.SubmitOTP{}}, true
		}
		return []checkout.Event{checkout.SubmitOTP{}}, true
	case "retry":
		return []checkout.Event{checkout.Retry{}}, true
	case "cancel":
		return []checkout.Event{checkout.Cancel{}}, true
	}
	return nil, false
}

func toCheckoutDTO(s *checkout.Session) CheckoutResponseDTO {
	st := s.State()
	draft := s.Draft()
	out := CheckoutResponseDTO{
		CheckoutID: s.ID(),
		Step:       st.Step,
		Method:     st.Method,
		UPIID:      st.UPIID,
		Error:      st.Error,
		Subtotal:   draft.Subtotal(),
		Amount:     s.Amount(),
	}
	if draft.DiscountAmount != nil {
		out.Discount = &checkout.AppliedDiscount{Code: draft.DiscountCode, Amount: *draft.DiscountAmount}
	}
	if st.Order != nil {
		out.OrderID = st.Order.OrderID
	}
	if st.Payment != nil {
		out.PaymentID = st.Payment.PaymentID
		out.PaymentStatus = st.Payment.Status
	}
	return out
}
