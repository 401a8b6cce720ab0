package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/shopsphere/internal/checkout"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sessions := NewRegistry()
	sessions.Add(checkout.NewSession(checkout.Draft{}, nil, nil, nil, checkout.DefaultConfig(), checkout.Callbacks{}, zerolog.Nop()))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	srv := NewServer(ln.Addr().String(), handler, sessions, 0, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, 0, sessions.Len(), "open sessions are closed on shutdown")
}

func TestServer_RunFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(ln.Addr().String(), http.NotFoundHandler(), nil, 0, time.Second, zerolog.Nop())
	assert.Error(t, srv.Run(context.Background()))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := checkout.NewSession(checkout.Draft{}, nil, nil, nil, checkout.DefaultConfig(), checkout.Callbacks{}, zerolog.Nop())

	r.Add(s)
	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	r.Remove(s.ID())
	_, ok = r.Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestServer_WriteTimeoutCoversCheckoutCalls(t *testing.T) {
	assert.Equal(t, 75*time.Second, CheckoutWriteTimeout(15*time.Second, 30*time.Second))

	srv := NewServer(":0", http.NotFoundHandler(), nil, CheckoutWriteTimeout(15*time.Second, 30*time.Second), time.Second, zerolog.Nop())
	assert.Equal(t, 75*time.Second, srv.WriteTimeout())
	assert.Equal(t, defaultWriteTimeout, NewServer(":0", http.NotFoundHandler(), nil, 0, time.Second, zerolog.Nop()).WriteTimeout())
}

func newTestSession() *checkout.Session {
	return checkout.NewSession(checkout.Draft{}, nil, nil, nil, checkout.DefaultConfig(), checkout.Callbacks{}, zerolog.Nop())
}

func TestRegistry_ReplaceCancelsOpenSession(t *testing.T) {
	r := NewRegistry()
	old := newTestSession()
	require.NoError(t, r.Replace(context.Background(), old))

	next := newTestSession()
	require.NoError(t, r.Replace(context.Background(), next))

	assert.Equal(t, checkout.StepCancelled, old.State().Step)
	_, ok := r.Get(old.ID())
	assert.False(t, ok)
	got, ok := r.Get(next.ID())
	require.True(t, ok)
	assert.Same(t, next, got)
	assert.Equal(t, 1, r.Len())
}

type blockingOrders struct {
	release chan struct{}
}

func (b blockingOrders) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	<-b.release
	return &domain.Order{OrderID: 7, CustomerID: req.CustomerID}, nil
}

type instantPayments struct{}

func (instantPayments) InitiatePayment(_ context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	return &domain.Payment{PaymentID: 1, OrderID: req.OrderID, Status: domain.PaymentStatusInitiated}, nil
}

func (instantPayments) ProcessPayment(context.Context, int64, string) (*domain.Payment, error) {
	return nil, errors.New("not used")
}

func TestRegistry_ReplaceKeepsSessionMidPayment(t *testing.T) {
	orders := blockingOrders{release: make(chan struct{})}
	busy := checkout.NewSession(checkout.Draft{}, orders, instantPayments{}, nil, checkout.DefaultConfig(), checkout.Callbacks{}, zerolog.Nop())
	t.Cleanup(busy.Close)

	r := NewRegistry()
	require.NoError(t, r.Replace(context.Background(), busy))

	done := make(chan error, 1)
	go func() {
		_, err := busy.Dispatch(context.Background(), checkout.SelectMethod{Method: domain.PaymentMethodCOD})
		done <- err
	}()
	require.Eventually(t, func() bool { return busy.State().Step == checkout.StepProcessing }, waitFor, tick)

	assert.ErrorIs(t, r.Replace(context.Background(), newTestSession()), ErrCheckoutInProgress)

	close(orders.release)
	require.NoError(t, <-done)
	assert.Equal(t, checkout.StepSuccess, busy.State().Step)
	assert.ErrorIs(t, r.Replace(context.Background(), newTestSession()), ErrCheckoutInProgress, "a completed payment waits for its success callback")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SweepExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(WithIdleTimeout(time.Minute))
	r.now = func() time.Time { return now }

	idle := newTestSession()
	r.Add(idle)
	now = now.Add(40 * time.Second)
	fresh := newTestSession()
	r.Add(fresh)
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Sweep(ctx, now))
	_, ok := r.Get(idle.ID())
	assert.False(t, ok)
	assert.Equal(t, checkout.StepCancelled, idle.State().Step)

	_, ok = r.Get(fresh.ID())
	require.True(t, ok, "Get marks the session as used")
	assert.Zero(t, r.Sweep(ctx, now.Add(59*time.Second)))
	assert.Equal(t, 1, r.Sweep(ctx, now.Add(time.Minute)))
	assert.Zero(t, r.Len())

	keep := NewRegistry()
	keep.Add(newTestSession())
	assert.Zero(t, keep.Sweep(ctx, now.Add(24*time.Hour)), "no idle timeout keeps sessions")
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	r := NewRegistry(WithIdleTimeout(time.Millisecond))
	r.Add(newTestSession())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return r.Len() == 0 }, waitFor, tick)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("sweeper did not stop")
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success", http.StatusCreated, "info"},
		{"server error", http.StatusBadGateway, "error"},
		{"implicit ok", 0, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf)
			handler := RequestIDMiddleware(LoggerMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			req.Header.Set("X-Request-ID", "req-7")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "req-7", entry["request_id"])
			assert.Equal(t, "/api/v1/cart", entry["url"])
			want := tt.status
			if want == 0 {
				want = http.StatusOK
			}
			assert.EqualValues(t, want, entry["status"])
		})
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}
