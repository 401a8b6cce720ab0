package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockOrders struct {
	mu      sync.RWMutex
	calls   []domain.CreateOrderRequest
	err     error
	started chan struct{}
	release chan struct{}
}

func (m *mockOrders) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := int64(len(m.calls))
	err := m.err
	started, release := m.started, m.release
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Order{
		OrderID:     100 + n,
		CustomerID:  req.CustomerID,
		OrderType:   req.OrderType,
		Status:      domain.OrderStatusPending,
		TotalAmount: dec("180"),
	}, nil
}

func (m *mockOrders) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

type mockPayments struct {
	mu         sync.RWMutex
	initiated  []domain.PaymentRequest
	processed  []string
	initErr    error
	processErr error
	failReason string
}

func (m *mockPayments) InitiatePayment(_ context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiated = append(m.initiated, req)
	if m.initErr != nil {
		return nil, m.initErr
	}
	return &domain.Payment{
		PaymentID:     int64(500 + len(m.initiated)),
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.PaymentStatusPending,
	}, nil
}

func (m *mockPayments) ProcessPayment(_ context.Context, paymentID int64, otp string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, otp)
	if m.processErr != nil {
		return nil, m.processErr
	}
	p := &domain.Payment{PaymentID: paymentID, Status: domain.PaymentStatusSuccess}
	if otp != "123456" {
		p.Status = domain.PaymentStatusFailed
		p.FailureReason = m.failReason
	}
	return p, nil
}

func (m *mockPayments) counts() (initiated, processed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.initiated), len(m.processed)
}

type mockPublisher struct {
	mu     sync.RWMutex
	events []events.CheckoutEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, ev events.CheckoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockPublisher) types() []events.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]events.Type, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	orders    *mockOrders
	payments  *mockPayments
	publisher *mockPublisher

	mu        sync.Mutex
	succeeded []int64
	cancelled []*domain.Order
}

func (f *fixture) successes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.succeeded...)
}

func newFixture() *fixture {
	return &fixture{
		orders:    &mockOrders{},
		payments:  &mockPayments{},
		publisher: &mockPublisher{},
	}
}

func (f *fixture) session(t *testing.T, cfg Config) *Session {
	t.Helper()
	draft := onlineDraft(DraftLine{ProductID: 1, Name: "Kettle", Quantity: 2, UnitPrice: dec("100")})
	draft = draft.WithDiscount(&AppliedDiscount{Code: "REWARD-7-1", Amount: dec("20")})

	s := NewSession(draft, f.orders, f.payments, f.publisher, cfg, Callbacks{
		OnSuccess: func(orderID int64) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.succeeded = append(f.succeeded, orderID)
		},
		OnCancel: func(order *domain.Order) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.cancelled = append(f.cancelled, order)
		},
	}, zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func testConfig() Config {
	return Config{CallTimeout: time.Second, SuccessDelay: 10 * time.Millisecond}
}

func TestSession_CODSucceedsWithoutOTP(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())
	ctx := context.Background()

	assert.True(t, dec("180").Equal(s.Amount()))
	assert.NotEmpty(t, s.ID())

	st, err := s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodCOD})

	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	require.NotNil(t, st.Order)
	assert.Equal(t, int64(101), st.Order.OrderID)
	assert.Equal(t, 1, f.orders.count())
	initiated, processed := f.payments.counts()
	assert.Equal(t, 1, initiated)
	assert.Zero(t, processed)
	assert.Nil(t, f.payments.initiated[0].UPIID)
	assert.True(t, dec("180").Equal(f.payments.initiated[0].Amount))

	req := f.orders.calls[0]
	assert.Equal(t, "REWARD-7-1", *req.DiscountCode)

	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
	assert.Equal(t, []int64{101}, f.successes())
	assert.Equal(t, []events.Type{events.CheckoutSucceeded}, f.publisher.types())
	assert.Equal(t, EffectNone, s.State().Effect)
}

func TestSession_SuccessCallbackWaitsForDelay(t *testing.T) {
	f := newFixture()
	s := f.session(t, Config{CallTimeout: time.Second, SuccessDelay: time.Hour})

	_, err := s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.successes())
	s.Close()
}

func TestSession_UPIFlow(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())
	ctx := context.Background()

	st, err := s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodUPI})
	require.NoError(t, err)
	assert.Equal(t, StepDetails, st.Step)
	assert.Zero(t, f.orders.count())

	_, err = s.Dispatch(ctx, EnterDetails{UPIID: "9876543210@paytm"})
	require.NoError(t, err)
	st, err = s.Dispatch(ctx, SubmitDetails{})
	require.NoError(t, err)
	assert.Equal(t, StepOTP, st.Step)
	require.NotNil(t, st.Payment)
	require.NotNil(t, f.payments.initiated[0].UPIID)
	assert.Equal(t, "9876543210@paytm", *f.payments.initiated[0].UPIID)

	_, err = s.Dispatch(ctx, EnterOTP{Raw: "123"})
	require.NoError(t, err)
	st, err = s.Dispatch(ctx, SubmitOTP{})
	require.NoError(t, err)
	assert.Equal(t, StepOTP, st.Step)
	assert.Equal(t, MsgInvalidOTP, st.Error)
	_, processed := f.payments.counts()
	assert.Zero(t, processed)

	_, err = s.Dispatch(ctx, EnterOTP{Raw: "123456"})
	require.NoError(t, err)
	st, err = s.Dispatch(ctx, SubmitOTP{})
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.Equal(t, domain.PaymentStatusSuccess, st.Payment.Status)

	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
}

func TestSession_VerifyFailureReasons(t *testing.T) {
	tests := []struct {
		name     string
		payments *mockPayments
		want     string
	}{
		{"server reason", &mockPayments{failReason: "Invalid OTP. Payment failed."}, "Invalid OTP. Payment failed."},
		{"no reason", &mockPayments{}, MsgPaymentFailed},
		{"http error", &mockPayments{processErr: &api.Error{Status: http.StatusBadRequest, Message: "Payment already processed"}}, "Payment already processed"},
		{"transport error", &mockPayments{processErr: fmt.Errorf("%w: connection refused", api.ErrTransport)}, MsgVerifyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.payments = tt.payments
			s := f.session(t, testConfig())

			st := driveToOTP(t, s)
			require.Equal(t, StepOTP, st.Step)
			_, err := s.Dispatch(context.Background(), EnterOTP{Raw: "000000"})
			require.NoError(t, err)

			st, err = s.Dispatch(context.Background(), SubmitOTP{})

			require.NoError(t, err)
			assert.Equal(t, StepFailed, st.Step)
			assert.Equal(t, tt.want, st.Error)
			assert.Equal(t, []events.Type{events.CheckoutFailed}, f.publisher.types())
		})
	}
}

func driveToOTP(t *testing.T, s *Session) State {
	t.Helper()
	ctx := context.Background()
	_, err := s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodUPI})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, EnterDetails{UPIID: "shopper@okaxis"})
	require.NoError(t, err)
	st, err := s.Dispatch(ctx, SubmitDetails{})
	require.NoError(t, err)
	return st
}

func TestSession_RetryReusesOrder(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())
	ctx := context.Background()

	driveToOTP(t, s)
	_, err := s.Dispatch(ctx, EnterOTP{Raw: "111111"})
	require.NoError(t, err)
	st, err := s.Dispatch(ctx, SubmitOTP{})
	require.NoError(t, err)
	require.Equal(t, StepFailed, st.Step)

	st, err = s.Dispatch(ctx, Retry{})
	require.NoError(t, err)
	assert.Equal(t, StepMethod, st.Step)
	assert.Empty(t, st.UPIID)
	assert.Empty(t, st.OTP)
	assert.Nil(t, st.Payment)
	require.NotNil(t, st.Order)

	st, err = s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodCOD})
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.Equal(t, int64(101), st.Order.OrderID)
	assert.Equal(t, 1, f.orders.count())
	initiated, _ := f.payments.counts()
	assert.Equal(t, 2, initiated)
	assert.Equal(t, int64(101), f.payments.initiated[1].OrderID)

	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
}

func TestSession_CreateOrderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &api.Error{Status: http.StatusBadRequest, Message: "Insufficient stock for product: Kettle"}, "Insufficient stock for product: Kettle"},
		{"transport", fmt.Errorf("%w: timeout", api.ErrTransport), MsgPlaceFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.err = tt.err
			s := f.session(t, testConfig())

			st, err := s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})

			require.NoError(t, err)
			assert.Equal(t, StepMethod, st.Step)
			assert.Equal(t, tt.want, st.Error)
			assert.Nil(t, st.Order)
			initiated, _ := f.payments.counts()
			assert.Zero(t, initiated)
		})
	}
}

func TestSession_InitiateFailureKeepsOrder(t *testing.T) {
	f := newFixture()
	f.payments.initErr = &api.Error{Status: http.StatusBadRequest, Message: "Payment already exists for this order"}
	s := f.session(t, testConfig())
	ctx := context.Background()

	st, err := s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodCOD})
	require.NoError(t, err)
	assert.Equal(t, StepMethod, st.Step)
	assert.Equal(t, "Payment already exists for this order", st.Error)
	require.NotNil(t, st.Order)

	f.payments.mu.Lock()
	f.payments.initErr = nil
	f.payments.mu.Unlock()

	st, err = s.Dispatch(ctx, SelectMethod{Method: domain.PaymentMethodCOD})
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.Equal(t, 1, f.orders.count())

	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
}

func TestSession_CallTimeout(t *testing.T) {
	f := newFixture()
	f.orders.release = make(chan struct{})
	s := f.session(t, Config{CallTimeout: 20 * time.Millisecond, SuccessDelay: time.Millisecond})

	st, err := s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})

	require.NoError(t, err)
	assert.Equal(t, StepMethod, st.Step)
	assert.Equal(t, MsgPlaceFailed, st.Error)
}

func TestSession_BusyWhileCallInFlight(t *testing.T) {
	f := newFixture()
	f.orders.started = make(chan struct{})
	f.orders.release = make(chan struct{})
	s := f.session(t, testConfig())

	done := make(chan State)
	go func() {
		st, _ := s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})
		done <- st
	}()

	<-f.orders.started
	st, err := s.Dispatch(context.Background(), Cancel{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StepProcessing, st.Step)

	close(f.orders.release)
	st = <-done
	assert.Equal(t, StepSuccess, st.Step)

	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
}

func TestSession_CancelBeforePayment(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())

	st, err := s.Dispatch(context.Background(), Cancel{})

	require.NoError(t, err)
	assert.Equal(t, StepCancelled, st.Step)
	assert.Zero(t, f.orders.count())
	require.Len(t, f.cancelled, 1)
	assert.Nil(t, f.cancelled[0])
	assert.Equal(t, []events.Type{events.CheckoutCancelled}, f.publisher.types())

	_, err = s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Zero(t, f.orders.count())
}

func TestSession_CancelAfterOrderCreated(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())

	driveToOTP(t, s)
	st, err := s.Dispatch(context.Background(), Cancel{})

	require.NoError(t, err)
	assert.Equal(t, StepCancelled, st.Step)
	require.Len(t, f.cancelled, 1)
	require.NotNil(t, f.cancelled[0])
	assert.Equal(t, int64(101), f.cancelled[0].OrderID)
	assert.Empty(t, f.successes())
}

func TestSession_InvalidEvent(t *testing.T) {
	f := newFixture()
	s := f.session(t, testConfig())

	st, err := s.Dispatch(context.Background(), SubmitOTP{})

	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Equal(t, StepMethod, st.Step)
}

func TestSession_PublishErrorIsNotSurfaced(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("queue full")
	s := f.session(t, testConfig())

	st, err := s.Dispatch(context.Background(), SelectMethod{Method: domain.PaymentMethodCOD})

	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	require.Eventually(t, func() bool {
		return len(f.successes()) == 1
	}, waitFor, tick)
}

func TestSession_NilPublisher(t *testing.T) {
	s := NewSession(onlineDraft(), &mockOrders{}, &mockPayments{}, nil, testConfig(), Callbacks{}, zerolog.Nop())
	defer s.Close()

	st, err := s.Dispatch(context.Background(), Cancel{})

	require.NoError(t, err)
	assert.Equal(t, StepCancelled, st.Step)
}
