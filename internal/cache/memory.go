package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/models"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

var _ core.Cache[*models.OAuthApplication] = (*MemoryCache[*models.OAuthApplication])(nil)

// MemoryCache is a process-local cache with lazy expiry. Expired entries are
// dropped when read and swept whenever the map grows past sweepThreshold.
type MemoryCache[T any] struct {
	mu             sync.RWMutex
	items          map[string]entry[T]
	sweepThreshold int
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items:          make(map[string]entry[T]),
		sweepThreshold: 1024,
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	var zero T
	if !ok {
		return zero, ErrCacheMiss
	}
	if time.Now().After(item.expiresAt) {
		m.mu.Lock()
		// re-check: a concurrent Set may have refreshed the entry
		if cur, ok := m.items[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return zero, ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) >= m.sweepThreshold {
		m.sweepLocked(time.Now())
	}
	m.items[key] = entry[T]{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries held, including ones not yet swept.
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache[T]) sweepLocked(now time.Time) {
	for k, item := range m.items {
		if now.After(item.expiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	m.items = make(map[string]entry[T])
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[T]) Health(context.Context) error {
	return nil
}

// GetWithFetch is a plain read-through. Concurrent misses on the same key
// each call fetchFunc.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = m.Set(ctx, key, value, ttl)
	return value, nil
}
