package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vehicle-advisor/internal/domain"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_items (
	class      TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	doc        JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (class, id)
)`

// pgxAPI is the subset of *pgxpool.Pool used by PostgresCatalog.
type pgxAPI interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCatalog stores raw catalog records as JSONB documents keyed by
// class and id.
type PostgresCatalog struct {
	db     pgxAPI
	logger *slog.Logger
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("repository: connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresCatalog creates a catalog over db. A nil logger uses
// slog.Default.
func NewPostgresCatalog(db pgxAPI, logger *slog.Logger) (*PostgresCatalog, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCatalog{db: db, logger: logger}, nil
}

// EnsureSchema creates the catalog table when missing.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, catalogSchema); err != nil {
		return fmt.Errorf("repository: EnsureSchema: %w", err)
	}
	return nil
}

// Fetch returns up to limit documents of class ordered by id. Documents that
// do not decode are dropped with a warning; query and scan failures fail the
// fetch.
func (c *PostgresCatalog) Fetch(ctx context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error) {
	if limit <= 0 {
		return nil, errors.New("repository: Fetch: limit must be positive")
	}
	if offset < 0 {
		return nil, errors.New("repository: Fetch: offset must not be negative")
	}
	rows, err := c.db.Query(ctx, `
		SELECT doc FROM catalog_items
		WHERE class = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`, string(class), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository: Fetch query: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("repository: Fetch scan: %w", err)
	}

	records := make([]domain.CatalogRecord, 0, len(docs))
	for i, doc := range docs {
		rec, ignored, err := decodeDocument(doc)
		if err != nil {
			c.logger.Warn("dropping catalog document", "class", class, "row", offset+i, "err", err)
			continue
		}
		if len(ignored) > 0 {
			c.logger.Warn("ignoring malformed catalog fields", "id", rec.ID, "fields", ignored)
		}
		records = append(records, rec)
	}
	return records, nil
}

// catalogDocument shadows the fields of CatalogRecord whose stored shape
// varies between catalog sources, so one bad value does not reject the
// whole document.
type catalogDocument struct {
	domain.CatalogRecord
	PriceNumeric   json.RawMessage            `json:"price_numeric"`
	Rating         json.RawMessage            `json:"rating_value"`
	ReviewCount    json.RawMessage            `json:"review_count"`
	Specifications map[string]json.RawMessage `json:"detailed_specifications"`
}

func decodeDocument(raw []byte) (rec domain.CatalogRecord, ignored []string, err error) {
	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.CatalogRecord{}, nil, fmt.Errorf("repository: decode document: %w", err)
	}
	rec = doc.CatalogRecord
	if strings.TrimSpace(rec.ID) == "" {
		return domain.CatalogRecord{}, nil, errors.New(`repository: decode document: missing "id"`)
	}
	if strings.TrimSpace(rec.Name) == "" {
		return domain.CatalogRecord{}, nil, fmt.Errorf(`repository: decode document %s: missing "name"`, rec.ID)
	}

	if !optionalJSON(doc.PriceNumeric, &rec.PriceNumeric) {
		ignored = append(ignored, "price_numeric")
	}
	if !optionalJSON(doc.Rating, &rec.Rating) {
		ignored = append(ignored, "rating_value")
	}
	if !optionalJSON(doc.ReviewCount, &rec.ReviewCount) {
		ignored = append(ignored, "review_count")
	}
	for group, v := range doc.Specifications {
		var values map[string]string
		if err := json.Unmarshal(v, &values); err != nil {
			ignored = append(ignored, "detailed_specifications."+group)
			continue
		}
		if rec.Specifications == nil {
			rec.Specifications = make(map[string]map[string]string, len(doc.Specifications))
		}
		rec.Specifications[group] = values
	}
	return rec, ignored, nil
}

// optionalJSON decodes raw into *dst. Absent and null values leave dst nil.
// It reports false when raw is present but has the wrong shape.
func optionalJSON[T any](raw json.RawMessage, dst **T) bool {
	*dst = nil
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = &v
	return true
}

// Upsert writes records of class, replacing documents with the same id.
func (c *PostgresCatalog) Upsert(ctx context.Context, class domain.VehicleClass, records []domain.CatalogRecord) error {
	for _, rec := range records {
		if rec.ID == "" {
			return errors.New("repository: Upsert: record id is required")
		}
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("repository: Upsert encode %s: %w", rec.ID, err)
		}
		_, err = c.db.Exec(ctx, `
			INSERT INTO catalog_items (class, id, doc)
			VALUES ($1, $2, $3)
			ON CONFLICT (class, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
			string(class), rec.ID, doc)
		if err != nil {
			return fmt.Errorf("repository: Upsert %s: %w", rec.ID, err)
		}
	}
	return nil
}
