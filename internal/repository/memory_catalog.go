package repository

import (
	"context"
	"errors"

	"vehicle-advisor/internal/domain"
)

// MemoryCatalog serves a fixed set of records per vehicle class. It backs the
// CLI and local runs when no database is configured.
type MemoryCatalog struct {
	records map[domain.VehicleClass][]domain.CatalogRecord
}

// NewMemoryCatalog creates a catalog over records. A nil map yields the
// built-in sample catalog.
func NewMemoryCatalog(records map[domain.VehicleClass][]domain.CatalogRecord) *MemoryCatalog {
	if records == nil {
		records = SampleCatalog()
	}
	return &MemoryCatalog{records: records}
}

// Fetch returns up to limit records of class starting at offset.
func (m *MemoryCatalog) Fetch(_ context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error) {
	if limit <= 0 {
		return nil, errors.New("repository: Fetch: limit must be positive")
	}
	if offset < 0 {
		return nil, errors.New("repository: Fetch: offset must not be negative")
	}
	all := m.records[class]
	if offset >= len(all) {
		return []domain.CatalogRecord{}, nil
	}
	end := min(offset+limit, len(all))
	return append([]domain.CatalogRecord(nil), all[offset:end]...), nil
}

func price(v float64) *float64 { return &v }

// SampleCatalog returns the built-in demo catalog: five bicycles and a
// handful of motorcycles.
func SampleCatalog() map[domain.VehicleClass][]domain.CatalogRecord {
	return map[domain.VehicleClass][]domain.CatalogRecord{
		domain.Bicycle: {
			{
				ID: "bike_123", Name: "City Commuter", Brand: "Hercules", PriceNumeric: price(24999),
				Specifications: map[string]map[string]string{
					"Chassis and Suspension": {"Front Suspension": "Front Fork", "Frame Material": "Aluminum"},
					"Drivetrain":             {"Gears": "7-speed"},
				},
			},
			{
				ID: "bike_456", Name: "Mountain Explorer", Brand: "Trek", PriceNumeric: price(89999),
				Specifications: map[string]map[string]string{
					"Chassis and Suspension": {"Suspension": "Full", "Frame Material": "Carbon Fiber"},
					"Drivetrain":             {"Gears": "21-speed"},
				},
			},
			{
				ID: "bike_789", Name: "Road Racer", Brand: "Giant", PriceNumeric: price(74999),
				Specifications: map[string]map[string]string{
					"Chassis and Suspension": {"Suspension": "None", "Frame Material": "Carbon Fiber"},
					"Drivetrain":             {"Gears": "18-speed"},
				},
			},
			{
				ID: "bike_101", Name: "Urban Glide", Brand: "Btwin", PriceNumeric: price(12999),
				Specifications: map[string]map[string]string{
					"Chassis and Suspension": {"Suspension": "None", "Frame Material": "Steel"},
					"Drivetrain":             {"Gears": "Single-speed"},
				},
			},
			{
				ID: "bike_202", Name: "Gravel Adventurer", Brand: "Polygon", PriceNumeric: price(34999),
				Specifications: map[string]map[string]string{
					"Chassis and Suspension": {"Front Suspension": "Front Fork", "Frame Material": "Aluminum"},
					"Drivetrain":             {"Gears": "11-speed"},
				},
			},
		},
		domain.Motorcycle: {
			{
				ID: "moto_activa", Name: "Honda Activa 6G", Brand: "Honda", PriceDisplay: "₹ 78,684", PriceNumeric: price(78684),
				Specifications: map[string]map[string]string{
					"Engine and Transmission": {"Displacement": "109.51 cc"},
					"Performance":             {"Mileage": "50 kmpl"},
					"Features":                {"Console": "Analogue", "Start": "Self & Kick"},
				},
			},
			{
				ID: "moto_splendor", Name: "Hero Splendor Plus", Brand: "Hero", PriceDisplay: "₹ 75,441", PriceNumeric: price(75441),
				Specifications: map[string]map[string]string{
					"Engine and Transmission": {"Displacement": "97.2 cc"},
					"Performance":             {"Mileage": "70 kmpl"},
					"Features and Safety":     {"Braking": "Drum"},
				},
			},
			{
				ID: "moto_r15", Name: "Yamaha R15 V4", Brand: "Yamaha", PriceDisplay: "₹ 1,82,000", PriceNumeric: price(182000),
				Specifications: map[string]map[string]string{
					"Engine and Transmission": {"Displacement": "155 cc"},
					"Performance":             {"Mileage": "45 kmpl"},
					"Features and Safety":     {"ABS": "Dual Channel", "Quick Shifter": "Yes"},
				},
			},
			{
				ID: "moto_classic350", Name: "Royal Enfield Classic 350", Brand: "Royal Enfield", PriceDisplay: "₹ 1,93,000", PriceNumeric: price(193000),
				Specifications: map[string]map[string]string{
					"Engine and Transmission": {"Displacement": "349 cc"},
					"Performance":             {"Mileage": "35 kmpl"},
					"Features":                {"Console": "Semi-digital"},
				},
			},
			{
				ID: "moto_himalayan", Name: "Royal Enfield Himalayan 450", Brand: "Royal Enfield", PriceDisplay: "₹ 2,85,000", PriceNumeric: price(285000),
				Specifications: map[string]map[string]string{
					"Engine and Transmission": {"Displacement": "452 cc"},
					"Performance":             {"Mileage": "30 kmpl"},
					"Features and Safety":     {"ABS": "Switchable", "Navigation": "Tripper"},
				},
			},
			{
				ID: "moto_ather", Name: "Ather 450X", Brand: "Ather", PriceDisplay: "₹ 1,47,000", PriceNumeric: price(147000),
				Specifications: map[string]map[string]string{
					"Motor & Battery": {"Mileage": "Not available"},
					"Features":        {"Console": "Touchscreen"},
				},
			},
		},
	}
}
