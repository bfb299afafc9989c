package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vehicle-advisor/internal/domain"
)

const (
	cacheKeyPrefix  = "vehicle-advisor:catalog:"
	defaultCacheTTL = 10 * time.Minute
)

// Fetcher is any catalog backend.
type Fetcher interface {
	Fetch(ctx context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error)
}

// redisAPI is the subset of *redis.Client used by CachedCatalog.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedCatalog keeps fetched record pages in Redis. The cache is best
// effort: Redis failures fall through to the wrapped backend.
type CachedCatalog struct {
	next   Fetcher
	rdb    redisAPI
	ttl    time.Duration
	logger *slog.Logger
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("repository: parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewCachedCatalog wraps next with a Redis cache. A non-positive ttl uses
// ten minutes.
func NewCachedCatalog(next Fetcher, rdb redisAPI, ttl time.Duration, logger *slog.Logger) (*CachedCatalog, error) {
	if next == nil {
		return nil, errors.New("repository: cached catalog backend must not be nil")
	}
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, logger: logger}, nil
}

func cacheKey(class domain.VehicleClass, limit, offset int) string {
	return fmt.Sprintf("%s%s:%d:%d", cacheKeyPrefix, class, limit, offset)
}

// Fetch serves the page from Redis when present, otherwise from the backend,
// storing the result for ttl.
func (c *CachedCatalog) Fetch(ctx context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error) {
	key := cacheKey(class, limit, offset)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []domain.CatalogRecord
		if err := json.Unmarshal(raw, &records); err == nil {
			c.logger.Debug("catalog cache hit", "key", key, "records", len(records))
			return records, nil
		}
		c.logger.Warn("discarding corrupt catalog cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache read failed", "key", key, "err", err)
	}

	records, err := c.next.Fetch(ctx, class, limit, offset)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("repository: encode catalog cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "err", err)
	}
	return records, nil
}
