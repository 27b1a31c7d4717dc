package cache

import (
	"sync"
	"time"

	"github.com/smallbiznis/catalog/internal/clock"
)

// Cache is a goroutine-safe in-process key/value cache with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Purge()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	clock   clock.Clock
	maxSize int
}

type TTLOption func(*ttlSettings)

type ttlSettings struct {
	clock   clock.Clock
	maxSize int
}

// WithClock overrides the time source used for expiry.
func WithClock(c clock.Clock) TTLOption {
	return func(s *ttlSettings) { s.clock = c }
}

// WithMaxSize bounds the number of live entries; expired entries are evicted first.
func WithMaxSize(n int) TTLOption {
	return func(s *ttlSettings) { s.maxSize = n }
}

func NewTTLCache[K comparable, V any](opts ...TTLOption) Cache[K, V] {
	settings := ttlSettings{clock: clock.NewSystemClock(), maxSize: 10_000}
	for _, opt := range opts {
		opt(&settings)
	}
	return &ttlCache[K, V]{
		items:   make(map[K]entry[V]),
		clock:   settings.clock,
		maxSize: settings.maxSize,
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(item.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return item.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictLocked(now)
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Purge() {
	c.mu.Lock()
	c.items = make(map[K]entry[V])
	c.mu.Unlock()
}

// evictLocked drops expired entries, or the entry closest to expiry when none are.
func (c *ttlCache[K, V]) evictLocked(now time.Time) {
	var (
		victim    K
		found     bool
		earliest  time.Time
		reclaimed bool
	)
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
			reclaimed = true
			continue
		}
		if !found || item.expiresAt.Before(earliest) {
			victim, earliest, found = key, item.expiresAt, true
		}
	}
	if !reclaimed && found {
		delete(c.items, victim)
	}
}
