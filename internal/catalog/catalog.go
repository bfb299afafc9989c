// Package catalog loads the initial candidate pool a conversation is seeded with.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/normalize"
)

const (
	defaultPoolLimit = 200
	loadTimeout      = 30 * time.Second
)

// ErrNoCandidates is returned when the catalog yields no usable records.
var ErrNoCandidates = errors.New("catalog: no usable candidates")

// Repository supplies raw catalog records from durable storage.
type Repository interface {
	Fetch(ctx context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error)
}

// Loader fetches and normalizes seed pools. Concurrent loads of the same
// class share one repository round-trip.
type Loader struct {
	repo   Repository
	limit  int
	offset int
	logger *slog.Logger

	group singleflight.Group
}

// NewLoader creates a Loader reading limit records starting at offset.
func NewLoader(repo Repository, limit, offset int, logger *slog.Logger) (*Loader, error) {
	if repo == nil {
		return nil, errors.New("catalog: repository must not be nil")
	}
	if limit <= 0 {
		limit = defaultPoolLimit
	}
	if offset < 0 {
		return nil, errors.New("catalog: offset must not be negative")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{repo: repo, limit: limit, offset: offset, logger: logger}, nil
}

// Load returns the normalized seed pool for class. Each caller receives its
// own slice.
//
// The shared fetch runs detached from any one caller's cancellation, bounded
// by loadTimeout. A caller whose ctx ends first returns ctx.Err() while the
// fetch continues for the others.
func (l *Loader) Load(ctx context.Context, class domain.VehicleClass) ([]domain.Candidate, error) {
	ch := l.group.DoChan(string(class), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return l.load(fetchCtx, class)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.Debug("catalog pool load shared", "class", class)
		}
		pool := res.Val.([]domain.Candidate)
		return append([]domain.Candidate(nil), pool...), nil
	}
}

func (l *Loader) load(ctx context.Context, class domain.VehicleClass) ([]domain.Candidate, error) {
	n, err := normalize.New(class, l.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	recs, err := l.repo.Fetch(ctx, class, l.limit, l.offset)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s pool: %w", class, err)
	}
	pool := n.Pool(recs)
	l.logger.Info("catalog pool loaded", "class", class, "records", len(recs), "candidates", len(pool))
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w for %s (%d records fetched)", ErrNoCandidates, class, len(recs))
	}
	return pool, nil
}
