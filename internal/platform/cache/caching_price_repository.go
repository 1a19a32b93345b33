// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	indicatorsusecase "jpstock_backend/internal/feature/indicators/usecase"
	"jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/feature/prices/usecase"
)

// PriceStore is the full set of price persistence operations the decorator wraps.
type PriceStore interface {
	usecase.PriceWriter
	usecase.PriceRepository
	indicatorsusecase.PriceHistoryRepository
}

// CachingPriceRepository decorates a PriceStore with Redis caching of read queries.
// Writes go straight to the inner store and invalidate the affected codes.
type CachingPriceRepository struct {
	inner     PriceStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

var (
	_ PriceStore                         = (*CachingPriceRepository)(nil)
	_ indicatorsusecase.CacheInvalidator = (*CachingPriceRepository)(nil)
)

// NewCachingPriceRepository decorates a PriceStore with Redis caching.
// If ttl is 0, entries live until the next daily refresh (18:30 JST).
// If namespace is empty, it uses "prices".
func NewCachingPriceRepository(rdb *redis.Client, ttl time.Duration, inner PriceStore, namespace string) *CachingPriceRepository {
	if ttl < 0 {
		ttl = 0
	}
	if namespace == "" {
		namespace = "prices"
	}
	return &CachingPriceRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
}

// UpsertBars writes bars and invalidates cache entries of every code in the batch.
func (c *CachingPriceRepository) UpsertBars(ctx context.Context, bars []entity.PriceBar) (int, error) {
	n, err := c.inner.UpsertBars(ctx, bars)
	if err != nil {
		return n, err
	}
	codes := make([]string, 0, len(bars))
	for _, b := range bars {
		codes = append(codes, b.Code)
	}
	c.InvalidateCodes(ctx, codes)
	return n, nil
}

// LoadCloseHistory is not cached; the updater always needs the stored history.
func (c *CachingPriceRepository) LoadCloseHistory(ctx context.Context, code string) ([]entity.ClosePoint, error) {
	return c.inner.LoadCloseHistory(ctx, code)
}

// UpdateIndicators passes through. The updater invalidates via InvalidateCodes once per symbol.
func (c *CachingPriceRepository) UpdateIndicators(ctx context.Context, code string, updates []entity.IndicatorUpdate) (int, error) {
	return c.inner.UpdateIndicators(ctx, code, updates)
}

// FindPrices retrieves a page of one stock's bars, checking cache first.
func (c *CachingPriceRepository) FindPrices(ctx context.Context, q entity.PriceQuery) (entity.PricePage, error) {
	key := c.pricesKey(q)
	return c.cached(ctx, key, func() (entity.PricePage, error) {
		return c.inner.FindPrices(ctx, q)
	})
}

// Latest retrieves the bars of the latest trading day, checking cache first.
func (c *CachingPriceRepository) Latest(ctx context.Context, codes []string, limit, offset int) (entity.PricePage, error) {
	key := c.latestKey(codes, limit, offset)
	return c.cached(ctx, key, func() (entity.PricePage, error) {
		return c.inner.Latest(ctx, codes, limit, offset)
	})
}

// InvalidateCodes deletes cached pages of the given codes and all latest-day pages.
// Failures are ignored: a stale entry expires at the next refresh anyway.
func (c *CachingPriceRepository) InvalidateCodes(ctx context.Context, codes []string) {
	// Exit early if Redis is not configured or there is nothing to invalidate
	if c.rdb == nil || len(codes) == 0 {
		return
	}
	seen := map[string]struct{}{}
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		_ = c.deleteByPattern(ctx, c.codePrefix(code)+"*")
	}
	_ = c.deleteByPattern(ctx, c.latestPrefix()+"*")
}

func (c *CachingPriceRepository) cached(ctx context.Context, key string, load func() (entity.PricePage, error)) (entity.PricePage, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return load()
	}

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.PricePage
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := load()
	if err != nil {
		return entity.PricePage{}, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.expiry()).Err()
	}
	return out, nil
}

func (c *CachingPriceRepository) expiry() time.Duration {
	if c.ttl > 0 {
		return c.ttl
	}
	return TimeUntilNextRefresh(c.now())
}

// pricesKey generates a cache key for one stock's history query.
func (c *CachingPriceRepository) pricesKey(q entity.PriceQuery) string {
	return fmt.Sprintf("%s%s:%s:%d:%d",
		c.codePrefix(q.Code),
		dateKey(q.Start),
		dateKey(q.End),
		q.Limit,
		q.Offset,
	)
}

func (c *CachingPriceRepository) latestKey(codes []string, limit, offset int) string {
	safeCodes := make([]string, len(codes))
	for i, code := range codes {
		safeCodes[i] = safe(code)
	}
	return fmt.Sprintf("%s%s:%d:%d", c.latestPrefix(), strings.Join(safeCodes, ","), limit, offset)
}

// codePrefix generates a prefix for invalidating one code's entries.
func (c *CachingPriceRepository) codePrefix(code string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(code))
}

func (c *CachingPriceRepository) latestPrefix() string {
	return c.namespace + ":latest:"
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPriceRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
