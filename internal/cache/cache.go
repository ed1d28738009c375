// Package cache provides the TTL verdict cache used by the analyzer and
// the API layer.
package cache

import (
	"sync"
	"time"

	"github.com/khanhnv2901/urlrisk/internal/checker"
	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

type entry struct {
	storedAt time.Time
	report   checker.Report
}

// TTLCache memoizes analysis reports with lazy expiry: stale entries are
// evicted on read. Safe for concurrent use.
type TTLCache struct {
	ttl time.Duration

	mu    sync.Mutex
	store map[string]entry

	// now is injected in tests.
	now func() time.Time
}

// New returns a cache with the given TTL; zero means the default.
func New(ttl time.Duration) *TTLCache {
	if ttl == 0 {
		ttl = consts.DefaultCacheTTL
	}
	return &TTLCache{
		ttl:   ttl,
		store: map[string]entry{},
		now:   time.Now,
	}
}

func (c *TTLCache) Get(key string) (checker.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return checker.Report{}, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.store, key)
		return checker.Report{}, false
	}
	return e.report, true
}

func (c *TTLCache) Set(key string, report checker.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{storedAt: c.now(), report: report}
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}
