package normalize

import (
	"regexp"
	"strconv"
)

// Unknown is the label used whenever a value cannot be bucketed.
const Unknown = "Unknown"

var digitRun = regexp.MustCompile(`\d+`)

// leadingNumber extracts the first run of digits from free text such as
// "155.6 cc" or "Approx 60 kmpl".
func leadingNumber(s string) (float64, bool) {
	run := digitRun.FindString(s)
	if run == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Rung is one step of a Ladder: values below Bound (or at it, for an
// inclusive ladder) receive Label.
type Rung struct {
	Bound float64
	Label string
}

// Ladder maps a number onto a fixed ordered set of labels. Rungs must be in
// ascending Bound order; values past the last rung get Top.
type Ladder struct {
	Rungs     []Rung
	Top       string
	Inclusive bool
}

// Label returns the tier for v.
func (l Ladder) Label(v float64) string {
	for _, r := range l.Rungs {
		if v < r.Bound || (l.Inclusive && v == r.Bound) {
			return r.Label
		}
	}
	return l.Top
}

// LabelText buckets the first number found in s, or Unknown.
func (l Ladder) LabelText(s string) string {
	n, ok := leadingNumber(s)
	if !ok {
		return Unknown
	}
	return l.Label(n)
}

// LabelPrice buckets a catalog price. Absent prices are Unknown. So are zero
// and negative prices: catalogs store 0 as a "price on request" placeholder,
// and it must not land in the cheapest tier.
func (l Ladder) LabelPrice(price *float64) string {
	if price == nil || *price <= 0 {
		return Unknown
	}
	return l.Label(*price)
}

// Displacement is fed whole numbers only, so "<100cc" is bounded at 99.
var engineDisplacement = Ladder{
	Inclusive: true,
	Rungs: []Rung{
		{Bound: 99, Label: "<100cc"},
		{Bound: 125, Label: "100-125cc"},
		{Bound: 150, Label: "125-150cc"},
		{Bound: 200, Label: "150-200cc"},
		{Bound: 250, Label: "200-250cc"},
		{Bound: 300, Label: "250-300cc"},
		{Bound: 500, Label: "300-500cc"},
	},
	Top: "500cc+",
}

var mileage = Ladder{
	Rungs: []Rung{
		{Bound: 30, Label: "Very Low (<30 kmpl)"},
		{Bound: 40, Label: "Low (30-40 kmpl)"},
		{Bound: 50, Label: "Medium (40-50 kmpl)"},
		{Bound: 60, Label: "High (50-60 kmpl)"},
	},
	Top: "Very High (60+ kmpl)",
}

var motorcycleBudget = Ladder{
	Rungs: []Rung{
		{Bound: 80000, Label: "Entry (< ₹80k)"},
		{Bound: 120000, Label: "Budget (₹80k - ₹1.2L)"},
		{Bound: 180000, Label: "Mid-Range (₹1.2L - ₹1.8L)"},
		{Bound: 250000, Label: "Premium (₹1.8L - ₹2.5L)"},
	},
	Top: "Super Premium (> ₹2.5L)",
}

var bicycleBudget = Ladder{
	Rungs: []Rung{
		{Bound: 15000, Label: "Entry"},
		{Bound: 40000, Label: "Mid"},
	},
	Top: "Premium",
}
