package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/shopsphere/internal/checkout"
)

// ErrCheckoutInProgress means the open checkout is placing an order or
// finishing a payment and cannot be replaced yet.
var ErrCheckoutInProgress = errors.New("checkout in progress")

type entry struct {
	session  *checkout.Session
	lastSeen time.Time
}

// Registry holds the open checkout sessions of this gateway. The gateway serves
// one cart, so at most one session is open at a time.
type Registry struct {
	// openMu serializes Replace so two checkouts cannot both win.
	openMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
}

type RegistryOption func(*Registry)

// WithIdleTimeout expires sessions nobody has touched for d. Zero keeps them
// until they finish.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Add(s *checkout.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = &entry{session: s, lastSeen: r.now()}
}

// Replace cancels every open session and registers s in their place. A session
// that is mid-payment or about to complete keeps its place and s is rejected
// with ErrCheckoutInProgress.
func (r *Registry) Replace(ctx context.Context, s *checkout.Session) error {
	r.openMu.Lock()
	defer r.openMu.Unlock()

	for _, old := range r.snapshot() {
		switch old.State().Step {
		case checkout.StepProcessing, checkout.StepSuccess:
			return ErrCheckoutInProgress
		}
		// The session lock decides a race with an event sent to old.
		if _, err := old.Dispatch(ctx, checkout.Cancel{}); errors.Is(err, checkout.ErrBusy) {
			return ErrCheckoutInProgress
		}
		if st := old.State().Step; st == checkout.StepProcessing || st == checkout.StepSuccess {
			return ErrCheckoutInProgress
		}
		old.Close()
		r.Remove(old.ID())
	}
	r.Add(s)
	return nil
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*checkout.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Remove forgets the session without stopping its pending callbacks.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep cancels and forgets sessions idle since before now minus the idle
// timeout. Sessions waiting on a remote call or a success callback are left
// to finish. It returns how many sessions were expired.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	r.openMu.Lock()
	defer r.openMu.Unlock()

	r.mu.RLock()
	var stale []*checkout.Session
	for _, e := range r.sessions {
		if now.Sub(e.lastSeen) >= r.idle {
			stale = append(stale, e.session)
		}
	}
	r.mu.RUnlock()

	var n int
	for _, s := range stale {
		switch s.State().Step {
		case checkout.StepProcessing, checkout.StepSuccess:
			continue
		}
		if _, err := s.Dispatch(ctx, checkout.Cancel{}); errors.Is(err, checkout.ErrBusy) {
			continue
		}
		s.Close()
		r.Remove(s.ID())
		n++
	}
	return n
}

// Run sweeps idle sessions every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if r.idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Sweep(ctx, r.now())
		}
	}
}

// Close stops every session's pending callbacks and forgets them all.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.session.Close()
		delete(r.sessions, id)
	}
}

func (r *Registry) snapshot() []*checkout.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*checkout.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	return out
}
