package domain

import (
	"fmt"
	"strings"
)

// VehicleClass selects the attribute schema, seed question and prompt persona.
type VehicleClass string

const (
	Bicycle    VehicleClass = "bicycle"
	Motorcycle VehicleClass = "motorcycle"
)

// ParseVehicleClass accepts the class name case-insensitively.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch VehicleClass(strings.ToLower(strings.TrimSpace(s))) {
	case Bicycle:
		return Bicycle, nil
	case Motorcycle:
		return Motorcycle, nil
	}
	return "", fmt.Errorf("domain: unknown vehicle class %q", s)
}

// Noun returns the user-facing name of the class.
func (c VehicleClass) Noun() string {
	if c == Motorcycle {
		return "motorcycle"
	}
	return "bicycle"
}

// SeedQuestion returns the first question asked for the class.
func (c VehicleClass) SeedQuestion() string {
	if c == Motorcycle {
		return "What kind of motorcycle are you looking for? (e.g., for city commuting, long tours, off-roading, or sporty rides?)"
	}
	return "What type of terrain will you primarily ride on?"
}

// Attributes is the closed categorical attribute vector sent to the reasoning
// gateway. Bicycle and motorcycle records populate different subsets; values
// are labels from fixed sets, never free text.
type Attributes struct {
	Type       string `json:"type"`
	PrimaryUse string `json:"primary_use"`
	BudgetTier string `json:"budget_tier"`
	Brand      string `json:"brand,omitempty"`

	Terrain       []string `json:"terrain,omitempty"`
	Suspension    string   `json:"suspension,omitempty"`
	Gears         string   `json:"gears,omitempty"`
	FrameMaterial string   `json:"frame_material,omitempty"`

	EngineDisplacement string   `json:"engine_displacement,omitempty"`
	Mileage            string   `json:"mileage,omitempty"`
	KeyFeatures        []string `json:"key_features,omitempty"`
}

// Candidate is one vehicle reduced to a stable id plus its attribute vector.
// ID is the only field the gateway may echo back to select survivors.
type Candidate struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`

	Brand    string  `json:"-"`
	Price    float64 `json:"-"`
	ImageURL string  `json:"-"`
	PageURL  string  `json:"-"`
}

// CatalogRecord is a raw catalog document as stored in the catalog backends.
// Specifications are grouped the way the source catalog groups them, e.g.
// "Engine and Transmission" -> {"Displacement": "155 cc"}.
type CatalogRecord struct {
	ID             string                       `json:"id"`
	Name           string                       `json:"name"`
	Brand          string                       `json:"brand"`
	PriceDisplay   string                       `json:"price_display,omitempty"`
	PriceNumeric   *float64                     `json:"price_numeric,omitempty"`
	ImageURL       string                       `json:"image_url,omitempty"`
	PageURL        string                       `json:"page_url,omitempty"`
	Rating         *float64                     `json:"rating_value,omitempty"`
	ReviewCount    *int                         `json:"review_count,omitempty"`
	Specifications map[string]map[string]string `json:"detailed_specifications,omitempty"`
}

// Spec returns a specification value, or "" when the group or key is absent.
func (r CatalogRecord) Spec(group, key string) string {
	return strings.TrimSpace(r.Specifications[group][key])
}
