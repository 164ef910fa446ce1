package data

import (
	"context"
	"sync"

	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// MemoryCache implements SeriesCache using in-memory storage.
// Cached series are shared read-only; callers must not mutate them.
type MemoryCache struct {
	cache map[string]*types.TickSeries
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string]*types.TickSeries),
	}
}

// Get retrieves a series from cache if available
func (c *MemoryCache) Get(key string) (*types.TickSeries, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	series, exists := c.cache[key]
	return series, exists
}

// Set stores a series in cache
func (c *MemoryCache) Set(key string, series *types.TickSeries) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = series
}

// Clear removes all cached series
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string]*types.TickSeries)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CachedProvider wraps another TickProvider with caching
type CachedProvider struct {
	provider TickProvider
	cache    SeriesCache
	log      *logger.Logger
}

// NewCachedProvider creates a new cached tick provider
func NewCachedProvider(provider TickProvider, log *logger.Logger) *CachedProvider {
	return NewCachedProviderWithCache(provider, NewMemoryCache(), log)
}

// NewCachedProviderWithCache creates a new cached tick provider with a custom cache
func NewCachedProviderWithCache(provider TickProvider, cache SeriesCache, log *logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		log:      log,
	}
}

// Name returns the name of the underlying provider with cache indication
func (p *CachedProvider) Name() string {
	return "Cached " + p.provider.Name()
}

// LoadSeries returns the cached series for code, loading it on a miss
func (p *CachedProvider) LoadSeries(ctx context.Context, code string) (*types.TickSeries, error) {
	if series, exists := p.cache.Get(code); exists {
		return series, nil
	}

	series, err := p.provider.LoadSeries(ctx, code)
	if err != nil {
		p.log.Errorw("failed to load series", "provider", p.provider.Name(), "code", code, "error", err)
		return nil, err
	}

	p.cache.Set(code, series)
	p.log.Debugw("loaded and cached series", "code", code, "ticks", series.Len())
	return series, nil
}

// ClearCache clears all cached series
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}

// CacheSize returns the number of cached entries
func (p *CachedProvider) CacheSize() int {
	return p.cache.Size()
}
