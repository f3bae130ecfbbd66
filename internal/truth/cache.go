package truth

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
	"github.com/wonny/skilltrack/pkg/redis"
)

// BatchCache is the subset of the Redis cache used for price batches
type BatchCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedPriceService caches whole batch responses keyed by symbols and range
type CachedPriceService struct {
	next   contracts.PriceService
	cache  BatchCache
	now    func() time.Time
	logger *logger.Logger
}

// NewCachedPriceService wraps next with cache. A disabled cache is a pass-through.
func NewCachedPriceService(next contracts.PriceService, cache BatchCache, log *logger.Logger) *CachedPriceService {
	return &CachedPriceService{
		next:   next,
		cache:  cache,
		now:    time.Now,
		logger: log.WithField("module", "truth"),
	}
}

// FetchPrices serves a batch from cache or delegates and stores the response.
// Only complete responses are stored: a batch with failed symbols is passed
// through uncached so the next run asks again. An unreadable entry is evicted
// and refetched. Cache failures are logged and never fail the fetch.
func (c *CachedPriceService) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) ([]contracts.PriceBar, error) {
	if !c.cache.Enabled() {
		return c.next.FetchPrices(ctx, symbols, start, end)
	}

	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	key := redis.PriceBatchKey(sorted, start, end)

	var cached []contracts.PriceBar
	hit, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Price cache read failed, evicting entry")
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Price cache evict failed")
		}
		hit = false
	}
	if hit {
		c.logger.WithField("key", key).Debug("Price cache hit")
		return cached, nil
	}

	bars, err := c.next.FetchPrices(ctx, symbols, start, end)
	if err != nil {
		return bars, err
	}

	// 오늘 이후를 포함하는 구간은 종가가 아직 확정되지 않음
	ttl := redis.TTLDaily
	if !end.Before(contracts.TruncateDate(c.now())) {
		ttl = redis.TTLShort
	}
	if err := c.cache.Set(ctx, key, bars, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Price cache write failed")
	}
	return bars, nil
}
