package storage

import (
	"context"
	"sync"
)

type memoryBackend struct {
	mu      sync.RWMutex
	items   map[string]string
	handles map[*MemoryStore]struct{}
}

// MemoryStore keeps items in process memory. Handles created with Tab share the
// data but not the identity, like two browser tabs of one profile.
type MemoryStore struct {
	backend *memoryBackend
	hub     *hub
}

func NewMemoryStore() *MemoryStore {
	b := &memoryBackend{
		items:   make(map[string]string),
		handles: make(map[*MemoryStore]struct{}),
	}
	return b.newHandle()
}

func (b *memoryBackend) newHandle() *MemoryStore {
	s := &MemoryStore{backend: b, hub: newHub()}
	b.mu.Lock()
	b.handles[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Tab opens another handle over the same items.
func (s *MemoryStore) Tab() *MemoryStore {
	return s.backend.newHandle()
}

func (s *MemoryStore) GetItem(_ context.Context, key string) (string, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	s.backend.items[key] = value
	others := s.othersLocked()
	s.backend.mu.Unlock()

	for _, o := range others {
		o.hub.publish(Change{Key: key})
	}
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	s.backend.mu.Lock()
	_, existed := s.backend.items[key]
	delete(s.backend.items, key)
	others := s.othersLocked()
	s.backend.mu.Unlock()

	if existed {
		for _, o := range others {
			o.hub.publish(Change{Key: key, Removed: true})
		}
	}
	return nil
}

func (s *MemoryStore) othersLocked() []*MemoryStore {
	others := make([]*MemoryStore, 0, len(s.backend.handles))
	for h := range s.backend.handles {
		if h != s {
			others = append(others, h)
		}
	}
	return others
}

func (s *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	return s.hub.subscribe(ctx)
}

func (s *MemoryStore) Close() error {
	s.backend.mu.Lock()
	delete(s.backend.handles, s)
	s.backend.mu.Unlock()
	s.hub.close()
	return nil
}
