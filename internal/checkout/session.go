package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error)
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)
	ProcessPayment(ctx context.Context, paymentID int64, otp string) (*domain.Payment, error)
}

type Config struct {
	// CallTimeout bounds each remote call. A timeout counts as a failed call.
	CallTimeout time.Duration
	// SuccessDelay is how long the success step shows before OnSuccess runs.
	SuccessDelay time.Duration
}

func DefaultConfig() Config {
	return Config{CallTimeout: 30 * time.Second, SuccessDelay: 2 * time.Second}
}

// Callbacks let the caller react to the end of a session. Both may be nil.
type Callbacks struct {
	// OnSuccess runs SuccessDelay after payment is confirmed.
	OnSuccess func(orderID int64)
	// OnCancel gets the order created before cancellation, or nil. Cleaning it
	// up is the caller's decision.
	OnCancel func(order *domain.Order)
}

// Session drives one payment flow over a draft: it applies Next and runs the
// remote effects the transitions ask for, one call at a time.
type Session struct {
	id        string
	draft     Draft
	cfg       Config
	orders    OrderService
	payments  PaymentService
	publisher events.Publisher
	callbacks Callbacks
	log       zerolog.Logger

	mu    sync.Mutex
	state State
	busy  bool
	timer *time.Timer
}

func NewSession(draft Draft, orders OrderService, payments PaymentService, publisher events.Publisher, cfg Config, cb Callbacks, log zerolog.Logger) *Session {
	if publisher == nil {
		publisher = events.Nop{}
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		draft:     draft,
		cfg:       cfg,
		orders:    orders,
		payments:  payments,
		publisher: publisher,
		callbacks: cb,
		log:       log.With().Str("component", "checkout").Str("checkout_id", id).Logger(),
		state:     Initial(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Draft() Draft { return s.draft }

// Amount is the amount to pay shown to the shopper.
func (s *Session) Amount() decimal.Decimal { return s.draft.Total() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies ev and runs any remote calls it triggers before returning.
// While those calls run, other events get ErrBusy.
func (s *Session) Dispatch(ctx context.Context, ev Event) (State, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return s.State(), ErrBusy
	}
	next, ok := transition(s.state, ev)
	if !ok {
		st := s.state
		s.mu.Unlock()
		return st, ErrInvalidEvent
	}
	s.state = next

	for s.state.Effect == EffectPlaceOrder || s.state.Effect == EffectVerify {
		effect, snapshot := s.state.Effect, s.state
		s.busy = true
		s.mu.Unlock()

		result := s.run(ctx, effect, snapshot)

		s.mu.Lock()
		s.busy = false
		s.state, _ = transition(s.state, result)
	}

	st := s.state
	s.state.Effect = EffectNone
	s.mu.Unlock()

	s.finish(st)
	return st, nil
}

func (s *Session) run(ctx context.Context, effect Effect, st State) Event {
	switch effect {
	case EffectPlaceOrder:
		return s.placeOrder(ctx, st)
	case EffectVerify:
		return s.verify(ctx, st)
	}
	return nil
}

func (s *Session) placeOrder(ctx context.Context, st State) Event {
	order := st.Order
	if order == nil {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		created, err := s.orders.CreateOrder(cctx, s.draft.ToCreateOrderRequest())
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Msg("create order failed")
			return PlaceFailed{Reason: api.Message(err, MsgPlaceFailed)}
		}
		order = created
		s.log.Info().Int64("order_id", order.OrderID).Msg("order created")
	}

	req := domain.PaymentRequest{
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		Amount:        order.TotalAmount,
		PaymentMethod: st.Method,
	}
	if st.Method.RequiresDetails() {
		upi := st.UPIID
		req.UPIID = &upi
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	payment, err := s.payments.InitiatePayment(cctx, req)
	if err != nil {
		s.log.Warn().Err(err).Int64("order_id", order.OrderID).Msg("initiate payment failed")
		return PlaceFailed{Order: order, Reason: api.Message(err, MsgPlaceFailed)}
	}
	return OrderPlaced{Order: order, Payment: payment}
}

func (s *Session) verify(ctx context.Context, st State) Event {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	payment, err := s.payments.ProcessPayment(cctx, st.Payment.PaymentID, st.OTP)
	if err != nil {
		s.log.Warn().Err(err).Int64("payment_id", st.Payment.PaymentID).Msg("verify payment failed")
		return VerifyFailed{Reason: api.Message(err, MsgVerifyFailed)}
	}
	if payment.Status == domain.PaymentStatusSuccess {
		return VerifySucceeded{Payment: payment}
	}
	return VerifyFailed{Payment: payment, Reason: reasonOr(payment.FailureReason, MsgPaymentFailed)}
}

// finish runs the effects that end a session and publishes lifecycle events.
func (s *Session) finish(st State) {
	switch {
	case st.Effect == EffectComplete:
		s.publish(events.CheckoutSucceeded, st)
		orderID := st.Order.OrderID
		s.mu.Lock()
		s.timer = time.AfterFunc(s.cfg.SuccessDelay, func() {
			if s.callbacks.OnSuccess != nil {
				s.callbacks.OnSuccess(orderID)
			}
		})
		s.mu.Unlock()
	case st.Effect == EffectCancel:
		s.publish(events.CheckoutCancelled, st)
		if s.callbacks.OnCancel != nil {
			s.callbacks.OnCancel(st.Order)
		}
	case st.Step == StepFailed:
		s.publish(events.CheckoutFailed, st)
	}
}

func (s *Session) publish(t events.Type, st State) {
	ev := events.CheckoutEvent{
		Type:          t,
		CustomerID:    s.draft.CustomerID,
		PaymentMethod: st.Method,
		Amount:        s.draft.Total(),
		Reason:        st.Error,
	}
	if st.Order != nil {
		ev.OrderID = st.Order.OrderID
		ev.Amount = st.Order.TotalAmount
	}
	if st.Payment != nil {
		ev.PaymentID = st.Payment.PaymentID
	}
	// The publisher only queues, so the request context is not needed.
	if err := s.publisher.Publish(context.Background(), ev); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(t)).Msg("publish checkout event")
	}
}

// Close stops a pending success callback.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}
