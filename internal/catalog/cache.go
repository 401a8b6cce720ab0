package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type ProductCache interface {
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productID int64) error
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.Product, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, *domain.Product) error          { return nil }
func (NopCache) Delete(context.Context, int64) error                 { return nil }

type memoryEntry struct {
	product   domain.Product
	expiresAt time.Time
}

// MemoryCache is a process-local cache. Expired entries are dropped on read.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.RLock()
	e, ok := m.entries[productID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, productID)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	p := e.product
	return &p, nil
}

func (m *MemoryCache) Set(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[product.ProductID] = memoryEntry{product: *product, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, productID)
	return nil
}

// RedisCache shares product records between storefront instances. TTLs get up
// to maxJitter added so entries written together do not expire together.
type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:    client,
		baseTTL:   ttl,
		maxJitter: time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	data, err := r.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &p, nil
}

func (r *RedisCache) Set(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	ttl := r.baseTTL
	if r.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.maxJitter)))
	}
	if err := r.client.Set(ctx, cacheKey(product.ProductID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, productID int64) error {
	if err := r.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("shopsphere:product:%d", productID)
}
