package api

import (
	"context"
	"net/http"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: req, envelope: true}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: req, envelope: true}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/users/%d", userID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the user the bearer token belongs to.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/profile"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
