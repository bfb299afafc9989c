package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"vehicle-advisor/internal/domain"
)

type fakeRedis struct {
	values  map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.lastTTL = expiration
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingFetcher struct {
	calls   int
	records []domain.CatalogRecord
	err     error
}

func (f *countingFetcher) Fetch(context.Context, domain.VehicleClass, int, int) ([]domain.CatalogRecord, error) {
	f.calls++
	return f.records, f.err
}

func TestCachedCatalog_MissThenHit(t *testing.T) {
	backend := &countingFetcher{records: []domain.CatalogRecord{{ID: "a", Name: "A"}}}
	rdb := &fakeRedis{}
	c, err := NewCachedCatalog(backend, rdb, time.Minute, nil)
	require.NoError(t, err)

	recs, err := c.Fetch(context.Background(), domain.Bicycle, 200, 0)
	require.NoError(t, err)
	require.Equal(t, "a", recs[0].ID)
	require.Equal(t, time.Minute, rdb.lastTTL)
	require.Contains(t, rdb.values, "vehicle-advisor:catalog:bicycle:200:0")

	recs, err = c.Fetch(context.Background(), domain.Bicycle, 200, 0)
	require.NoError(t, err)
	require.Equal(t, "a", recs[0].ID)
	require.Equal(t, 1, backend.calls)

	_, err = c.Fetch(context.Background(), domain.Motorcycle, 200, 0)
	require.NoError(t, err)
	require.Equal(t, 2, backend.calls)
}

func TestCachedCatalog_RedisFailuresFallThrough(t *testing.T) {
	backend := &countingFetcher{records: []domain.CatalogRecord{{ID: "a", Name: "A"}}}
	rdb := &fakeRedis{getErr: errors.New("connection refused"), setErr: errors.New("connection refused")}
	c, err := NewCachedCatalog(backend, rdb, 0, nil)
	require.NoError(t, err)

	recs, err := c.Fetch(context.Background(), domain.Bicycle, 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, defaultCacheTTL, rdb.lastTTL)
}

func TestCachedCatalog_CorruptEntryRefetches(t *testing.T) {
	backend := &countingFetcher{records: []domain.CatalogRecord{{ID: "fresh", Name: "Fresh"}}}
	rdb := &fakeRedis{values: map[string]string{"vehicle-advisor:catalog:bicycle:10:0": "{oops"}}
	c, err := NewCachedCatalog(backend, rdb, time.Minute, nil)
	require.NoError(t, err)

	recs, err := c.Fetch(context.Background(), domain.Bicycle, 10, 0)
	require.NoError(t, err)
	require.Equal(t, "fresh", recs[0].ID)

	var cached []domain.CatalogRecord
	require.NoError(t, json.Unmarshal([]byte(rdb.values["vehicle-advisor:catalog:bicycle:10:0"]), &cached))
	require.Equal(t, "fresh", cached[0].ID)
}

func TestCachedCatalog_BackendErrorNotCached(t *testing.T) {
	backend := &countingFetcher{err: errors.New("db down")}
	rdb := &fakeRedis{}
	c, err := NewCachedCatalog(backend, rdb, time.Minute, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), domain.Bicycle, 10, 0)
	require.ErrorContains(t, err, "db down")
	require.Empty(t, rdb.values)
}

func TestNewCachedCatalog_Validates(t *testing.T) {
	_, err := NewCachedCatalog(nil, &fakeRedis{}, 0, nil)
	require.Error(t, err)
	_, err = NewCachedCatalog(&countingFetcher{}, nil, 0, nil)
	require.Error(t, err)
}
