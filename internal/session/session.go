// Package session keeps the auth token and the signed-in user next to the cart
// in client-local storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/storage"
	"github.com/rs/zerolog"
)

const (
	TokenKey = "token"
	UserKey  = "user"
)

var ErrMissingToken = errors.New("session: auth response carried no token")

type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error)
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResponse, error)
}

type Session struct {
	storage storage.Store
	auth    Authenticator
	log     zerolog.Logger

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

func New(st storage.Store, auth Authenticator, log zerolog.Logger) *Session {
	return &Session{
		storage: st,
		auth:    auth,
		log:     log.With().Str("component", "session").Logger(),
		subs:    make(map[chan struct{}]struct{}),
	}
}

func (s *Session) Login(ctx context.Context, email, password string) (*domain.User, error) {
	resp, err := s.auth.Login(ctx, domain.LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return nil, err
	}
	return s.store(ctx, resp)
}

// Signup validates the form locally before calling the API.
func (s *Session) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = CleanPhone(req.Phone)
	if err := ValidateSignup(req); err != nil {
		return nil, err
	}

	resp, err := s.auth.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, resp)
}

func (s *Session) store(ctx context.Context, resp *domain.AuthResponse) (*domain.User, error) {
	if resp.Token == "" {
		return nil, ErrMissingToken
	}
	user := resp.User()
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.SetItem(ctx, TokenKey, resp.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if err := s.storage.SetItem(ctx, UserKey, string(data)); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	s.log.Info().Int64("user_id", user.UserID).Str("role", string(user.Role)).Msg("signed in")
	s.notify()
	return &user, nil
}

func (s *Session) Logout(ctx context.Context) {
	for _, key := range []string{TokenKey, UserKey} {
		if err := s.storage.RemoveItem(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("clear session")
		}
	}
	s.notify()
}

// Token returns the stored bearer token, or "" when signed out.
func (s *Session) Token() string {
	token, err := s.storage.GetItem(context.Background(), TokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Msg("read token")
		}
		return ""
	}
	return token
}

// CurrentUser decodes the stored user blob. A missing or unreadable blob means
// nobody is signed in.
func (s *Session) CurrentUser() (*domain.User, bool) {
	raw, err := s.storage.GetItem(context.Background(), UserKey)
	if err != nil {
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn().Err(err).Msg("malformed user blob")
		return nil, false
	}
	return &u, true
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) IsAdmin() bool {
	u, ok := s.CurrentUser()
	return ok && u.Role == domain.RoleAdmin
}

// Subscribe notifies on sign-in and sign-out, coalescing like the cart does.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run forwards token and user changes made by other handles until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	changes, err := s.storage.Watch(ctx)
	if err != nil {
		return err
	}
	for c := range changes {
		if c.Key == TokenKey || c.Key == UserKey {
			s.notify()
		}
	}
	return ctx.Err()
}
