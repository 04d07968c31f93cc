package policy

import (
	"sync"
	"time"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

// DefaultCacheTTL: сколько политика живет в кэше после резолвинга
const DefaultCacheTTL = 5 * time.Minute

// Clock подменяется в тестах
type Clock func() time.Time

type cacheEntry struct {
	policy    domain.Policy
	expiresAt time.Time
}

// Cache: потокобезопасный in-memory кэш политик (L1) с TTL.
// Ключ: нормализованное ENS-имя. Просроченные записи не вычищаются фоном,
// а просто игнорируются при чтении и перезаписываются следующим резолвингом.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     Clock
}

func NewCache(ttl time.Duration, now Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *Cache) Now() time.Time { return c.now() }

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get: Hot Path, только RAM
func (c *Cache) Get(name string) (domain.Policy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok || !c.now().Before(e.expiresAt) {
		return domain.Policy{}, false
	}
	return e.policy.Clone(), true
}

// Put сохраняет политику с expiresAt = now + ttl и возвращает этот срок.
func (c *Cache) Put(p domain.Policy) time.Time {
	expiresAt := c.now().Add(c.ttl)
	c.PutUntil(p, expiresAt)
	return expiresAt
}

// PutUntil: запись с явным сроком (гидрация из L2).
func (c *Cache) PutUntil(p domain.Policy, expiresAt time.Time) {
	c.mu.Lock()
	c.entries[p.SourceName] = cacheEntry{policy: p.Clone(), expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len считает и просроченные записи
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
