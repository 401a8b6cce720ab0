package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", zerolog.Nop(), opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetProduct_DecodesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products/7", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ok",
			"data":    map[string]any{"productId": 7, "name": "Lamp", "price": 100.00, "stockQuantity": 3},
		})
	})

	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ProductID)
	assert.Equal(t, "Lamp", p.Name)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, p.StockQuantity)
	assert.Equal(t, 3, *p.StockQuantity)
}

func TestDo_AttachesBearerToken(t *testing.T) {
	token := "abc.def"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc.def", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"hasCoupon": false})
	}, WithTokenSource(TokenFunc(func() string { return token })))

	_, err := c.ActiveCoupon(context.Background(), 1)
	require.NoError(t, err)
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	}, WithTokenSource(TokenFunc(func() string { return "" })))

	_, err := c.ActiveCampaigns(context.Background())
	require.NoError(t, err)
}

func TestDo_ErrorResponseCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Insufficient stock for Lamp"})
	})

	_, err := c.CreateOrder(context.Background(), domain.CreateOrderRequest{CustomerID: 1})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Insufficient stock for Lamp", Message(err, "fallback"))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestDo_ErrorWithoutMessageUsesFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	})

	_, err := c.GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "Failed to process order. Please try again.", Message(err, "Failed to process order. Please try again."))
}

func TestDo_EnvelopeFailureIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "nope"})
	})

	_, err := c.ListProducts(context.Background())
	assert.Equal(t, "nope", Message(err, ""))
}

func TestDo_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Product not found"})
	})

	_, err := c.GetProduct(context.Background(), 99)
	assert.True(t, IsNotFound(err))
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL+"/api", zerolog.Nop())

	_, err := c.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "fallback", Message(err, "fallback"))
}

func TestProcessPayment_SendsOTPAsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/payments/12/process", r.URL.Path)
		assert.Equal(t, "123456", r.URL.Query().Get("otp"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"paymentId": 12, "status": "SUCCESS", "amount": 180},
		})
	})

	p, err := c.ProcessPayment(context.Background(), 12, "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, p.Status)
}

func TestValidateDiscountCode_RawBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/loyalty/validate-code/REWARD-1-99", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("orderTotal"))
		writeJSON(w, http.StatusOK, map[string]any{"valid": true, "discountAmount": 20.00, "code": "REWARD-1-99"})
	})

	v, err := c.ValidateDiscountCode(context.Background(), "REWARD-1-99", decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.DiscountAmount.Equal(decimal.NewFromInt(20)))
}

func TestCreateOrder_SendsNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, 20.5, body["discountAmount"])
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"orderId": 5}})
	})

	amount := decimal.RequireFromString("20.5")
	o, err := c.CreateOrder(context.Background(), domain.CreateOrderRequest{CustomerID: 1, DiscountAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(5), o.OrderID)
}

func TestPathf_EscapesStrings(t *testing.T) {
	assert.Equal(t, "/store-inventory/store/Main%20St%2F2", pathf("/store-inventory/store/%s", "Main St/2"))
	assert.Equal(t, "/orders/3", pathf("/orders/%d", int64(3)))
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream down"})
	}, WithCircuitBreaker("test", 2, time.Minute))

	for range 2 {
		_, err := c.GetProduct(context.Background(), 1)
		assert.Equal(t, "upstream down", Message(err, ""))
	}

	_, err := c.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load(), "open breaker fails without calling the API")
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Product not found with id: 1"})
	}, WithCircuitBreaker("test", 1, time.Minute))

	for range 3 {
		_, err := c.GetProduct(context.Background(), 1)
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestCircuitBreaker_ZeroFailuresDisables(t *testing.T) {
	c := New("http://localhost", zerolog.Nop(), WithCircuitBreaker("test", 0, time.Minute))
	assert.Nil(t, c.breaker)
}

func TestTimeout_AppliesOnlyWithoutCallerDeadline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(100 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"productId": 1, "name": "Lamp", "price": 10}})
	}, WithTimeout(20*time.Millisecond))

	_, err := c.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := c.GetProduct(ctx, 1)
	require.NoError(t, err, "a longer caller deadline wins over the default")
	assert.Equal(t, "Lamp", p.Name)
}
