package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// WithCircuitBreaker stops calling the API for cooldown once failures
// consecutive calls failed. Only transport errors and 5xx responses count;
// 4xx answers mean the backend is up.
func WithCircuitBreaker(name string, failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if failures == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return !backendFailure(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
			},
		})
	}
}

func backendFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrTransport)
}

// guarded runs send through the breaker when one is configured. An open
// breaker fails fast with ErrTransport.
func (c *Client) guarded(r request, send func() error) error {
	if c.breaker == nil {
		return send()
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, send()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, r.method, r.path, err)
	}
	return err
}
