package cart

import (
	"context"
	"sync"
)

// Source says where a cart change came from.
type Source int

const (
	// SourceLocal is a mutation made through this Store.
	SourceLocal Source = iota
	// SourceStorage is a write by another tab or process sharing the storage.
	SourceStorage
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Event tells subscribers to re-read the cart.
type Event struct {
	Source Source
}

// Subscribe registers for change notifications. Notifications coalesce: a
// subscriber that falls behind sees one pending event, not every change. Call
// the returned func at teardown; it closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1)

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

func (s *Store) notify(src Source) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- Event{Source: src}:
		default:
		}
	}
}

// Run forwards changes of the cart key made by other handles to subscribers
// until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	changes, err := s.storage.Watch(ctx)
	if err != nil {
		return err
	}
	s.log.Debug().Msg("watching storage for cart changes")
	for c := range changes {
		if c.Key == Key {
			s.notify(SourceStorage)
		}
	}
	return ctx.Err()
}
