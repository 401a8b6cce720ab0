// Package storage provides the client-local key/value storage the storefront keeps
// its cart and auth session in, with browser local-storage semantics: values are
// strings, and watchers are told about writes made by other handles or processes.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: store closed")
)

// changeBuffer bounds pending notifications per watcher. Notifications are hints
// to re-read, so a full buffer drops instead of blocking writers.
const changeBuffer = 16

// Change describes a write made outside the watching handle.
type Change struct {
	Key     string
	Removed bool
}

type Store interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	// Watch streams changes made by other handles until ctx is done or the
	// store is closed; the channel is closed then.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}

// hub fans changes out to watchers.
type hub struct {
	mu     sync.Mutex
	subs   map[chan Change]func() bool
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan Change]func() bool)}
}

func (h *hub) subscribe(ctx context.Context) (<-chan Change, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	ch := make(chan Change, changeBuffer)
	h.subs[ch] = context.AfterFunc(ctx, func() { h.remove(ch) })
	return ch, nil
}

func (h *hub) remove(ch chan Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (h *hub) watching() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch, stop := range h.subs {
		stop()
		delete(h.subs, ch)
		close(ch)
	}
}
