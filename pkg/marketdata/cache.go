package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/quantarc/fuzzywheel/pkg/core"
)

// Cache memoizes a DataProvider by symbol and range. The optimizer asks for
// the same slice once per candidate, so the upstream is hit exactly once per
// distinct request.
type Cache struct {
	upstream core.DataProvider

	mu     sync.RWMutex
	keys   *set.LinkedHashSetString
	ranges map[string][]core.TradingDay
}

// NewCache wraps a provider with request memoization.
func NewCache(upstream core.DataProvider) *Cache {
	return &Cache{
		upstream: upstream,
		keys:     set.NewLinkedHashSetString(),
		ranges:   make(map[string][]core.TradingDay),
	}
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s--%s--%s", symbol, start.Format(dateLayout), end.Format(dateLayout))
}

// DailyHistory implements core.DataProvider.
func (c *Cache) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.TradingDay, error) {
	key := cacheKey(symbol, start, end)

	c.mu.RLock()
	if days, ok := c.ranges[key]; ok {
		c.mu.RUnlock()
		return days, nil
	}
	c.mu.RUnlock()

	days, err := c.upstream.DailyHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys.Add(key)
	c.ranges[key] = days
	c.mu.Unlock()

	return days, nil
}

// CachedRanges lists the memoized request keys in load order.
func (c *Cache) CachedRanges() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.keys.Length())
	for key := range c.keys.Iter() {
		keys = append(keys, key)
	}
	return keys
}

// Invalidate drops every memoized range.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = set.NewLinkedHashSetString()
	c.ranges = make(map[string][]core.TradingDay)
}
