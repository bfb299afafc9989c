package normalize

import "strings"

// Rule assigns a type and primary use when any keyword occurs in a record name.
type Rule struct {
	Keywords   []string
	Type       string
	PrimaryUse string
}

// RuleSet is an ordered list of rules; the first match wins.
type RuleSet struct {
	Rules             []Rule
	DefaultType       string
	DefaultPrimaryUse string
}

// Infer matches name case-insensitively against the rules.
func (rs RuleSet) Infer(name string) (kind, primaryUse string) {
	lower := strings.ToLower(name)
	for _, r := range rs.Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type, r.PrimaryUse
			}
		}
	}
	return rs.DefaultType, rs.DefaultPrimaryUse
}

var motorcycleRules = RuleSet{
	Rules: []Rule{
		{Keywords: []string{"scooter"}, Type: "Scooter", PrimaryUse: "City Commute"},
		{Keywords: []string{"sport", "racing", "rr", "rc"}, Type: "Sport", PrimaryUse: "Sport Riding"},
		{Keywords: []string{"cruiser", "avenger", "meteor", "classic"}, Type: "Cruiser", PrimaryUse: "Leisure Riding"},
		{Keywords: []string{"adventure", "himalayan", "xpulse", "adv"}, Type: "Adventure/Off-road", PrimaryUse: "Off-road Adventures"},
		{Keywords: []string{"cafe racer"}, Type: "Cafe Racer", PrimaryUse: "Weekend Rides"},
	},
	DefaultType:       "Commuter",
	DefaultPrimaryUse: "City Commute",
}

var bicycleRules = RuleSet{
	Rules: []Rule{
		{Keywords: []string{"electric", "e-bike", "ebike"}, Type: "Electric", PrimaryUse: "Commuting"},
		{Keywords: []string{"mountain", "mtb", "trail"}, Type: "Mountain", PrimaryUse: "Trail Riding"},
		{Keywords: []string{"gravel"}, Type: "Gravel", PrimaryUse: "Mixed"},
		{Keywords: []string{"road", "racer"}, Type: "Road", PrimaryUse: "Exercise"},
		{Keywords: []string{"hybrid"}, Type: "Hybrid", PrimaryUse: "Commuting"},
		{Keywords: []string{"city", "urban", "commuter"}, Type: "Commuter", PrimaryUse: "Commuting"},
	},
	DefaultType:       "Hybrid",
	DefaultPrimaryUse: "Commuting",
}

var bicycleTerrain = map[string][]string{
	"Electric": {"Paved Roads", "Light Gravel"},
	"Mountain": {"Off-road", "Rough Trails", "Gravel"},
	"Gravel":   {"Gravel", "Paved Roads", "Light Trails"},
	"Road":     {"Paved Roads"},
	"Hybrid":   {"Paved Roads", "Light Gravel"},
	"Commuter": {"Paved Roads"},
}

// specPath addresses one value inside a record's specification groups.
type specPath struct {
	group string
	key   string
}

var (
	motorcycleMileagePaths = []specPath{{"Performance", "Mileage"}, {"Motor & Battery", "Mileage"}}
	displacementPaths      = []specPath{{"Engine and Transmission", "Displacement"}}
	suspensionPaths        = []specPath{{"Chassis and Suspension", "Suspension"}, {"Chassis and Suspension", "Front Suspension"}}
	gearPaths              = []specPath{{"Drivetrain", "Gears"}, {"Underpinnings", "Gears"}, {"Engine and Transmission", "Gears"}}
	framePaths             = []specPath{{"Chassis and Suspension", "Frame Material"}, {"Frame", "Material"}, {"Underpinnings", "Frame"}}
)

// featureGroups lists the specification groups flattened into key features.
var featureGroups = []string{"Features", "Features and Safety"}
