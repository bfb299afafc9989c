// Package normalize maps raw catalog records onto the closed categorical
// attribute vectors the reasoning gateway works with.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/panics"

	"vehicle-advisor/internal/domain"
)

// Normalizer converts catalog records of one vehicle class into candidates.
type Normalizer struct {
	class   domain.VehicleClass
	logger  *slog.Logger
	convert func(domain.CatalogRecord) (domain.Candidate, error)
}

// New returns a Normalizer for class. A nil logger falls back to slog.Default.
func New(class domain.VehicleClass, logger *slog.Logger) (*Normalizer, error) {
	if class != domain.Bicycle && class != domain.Motorcycle {
		return nil, fmt.Errorf("normalize: unsupported vehicle class %q", class)
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{class: class, logger: logger}
	n.convert = n.Candidate
	return n, nil
}

// Class reports the vehicle class this normalizer handles.
func (n *Normalizer) Class() domain.VehicleClass { return n.class }

// Candidate normalizes one record. An error means the record is unusable.
func (n *Normalizer) Candidate(rec domain.CatalogRecord) (domain.Candidate, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return domain.Candidate{}, errors.New("normalize: record has no id")
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return domain.Candidate{}, fmt.Errorf("normalize: record %s has no name", id)
	}

	var attrs domain.Attributes
	switch n.class {
	case domain.Motorcycle:
		attrs = motorcycleAttributes(rec)
	default:
		attrs = bicycleAttributes(rec)
	}

	c := domain.Candidate{
		ID:         id,
		Name:       name,
		Attributes: attrs,
		Brand:      strings.TrimSpace(rec.Brand),
		ImageURL:   rec.ImageURL,
		PageURL:    rec.PageURL,
	}
	if rec.PriceNumeric != nil {
		c.Price = *rec.PriceNumeric
	}
	return c, nil
}

// Pool normalizes a batch. Records that fail, including by panicking, are
// logged and skipped; duplicate ids keep their first occurrence. An empty
// result is valid.
func (n *Normalizer) Pool(recs []domain.CatalogRecord) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		var (
			c   domain.Candidate
			err error
		)
		var pc panics.Catcher
		pc.Try(func() { c, err = n.convert(rec) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}
		if err != nil {
			n.logger.Warn("skipping catalog record", "class", n.class, "name", rec.Name, "err", err)
			continue
		}
		if _, dup := seen[c.ID]; dup {
			n.logger.Warn("skipping duplicate catalog record", "class", n.class, "id", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func motorcycleAttributes(rec domain.CatalogRecord) domain.Attributes {
	kind, use := motorcycleRules.Infer(rec.Name)
	return domain.Attributes{
		Type:               kind,
		PrimaryUse:         use,
		BudgetTier:         motorcycleBudget.LabelPrice(rec.PriceNumeric),
		Brand:              strings.TrimSpace(rec.Brand),
		EngineDisplacement: engineDisplacement.LabelText(firstSpec(rec, displacementPaths)),
		Mileage:            mileage.LabelText(firstSpec(rec, motorcycleMileagePaths)),
		KeyFeatures:        Features(rec),
	}
}

func bicycleAttributes(rec domain.CatalogRecord) domain.Attributes {
	kind, use := bicycleRules.Infer(rec.Name)
	terrain := append([]string(nil), bicycleTerrain[kind]...)
	return domain.Attributes{
		Type:          kind,
		PrimaryUse:    use,
		BudgetTier:    bicycleBudget.LabelPrice(rec.PriceNumeric),
		Brand:         strings.TrimSpace(rec.Brand),
		Terrain:       terrain,
		Suspension:    orUnknown(firstSpec(rec, suspensionPaths)),
		Gears:         orUnknown(firstSpec(rec, gearPaths)),
		FrameMaterial: orUnknown(firstSpec(rec, framePaths)),
	}
}

// Features flattens the feature groups of a record into one list. Groups are
// visited in a fixed order and keys within a group in sorted order; empty
// values are dropped and duplicates kept.
func Features(rec domain.CatalogRecord) []string {
	var out []string
	for _, group := range featureGroups {
		values := rec.Specifications[group]
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := strings.TrimSpace(values[k]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func firstSpec(rec domain.CatalogRecord, paths []specPath) string {
	for _, p := range paths {
		if v := rec.Spec(p.group, p.key); v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
