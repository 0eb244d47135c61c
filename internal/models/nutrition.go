package models

import "math"

// Total holds the six aggregated nutrition values tracked for a meal or a
// whole day. All values are integers; fractions coming from collaborators
// are rounded at the boundary before they reach this type.
type Total struct {
	Kcal     int `json:"kcal" validate:"gte=0"`
	ProteinG int `json:"protein_g" validate:"gte=0"`
	FatG     int `json:"fat_g" validate:"gte=0"`
	CarbsG   int `json:"carbs_g" validate:"gte=0"`
	SugarG   int `json:"sugar_g" validate:"gte=0"`
	FiberG   int `json:"fiber_g" validate:"gte=0"`
}

// Add adds every field of other to t in place.
func (t *Total) Add(other Total) {
	t.Kcal += other.Kcal
	t.ProteinG += other.ProteinG
	t.FatG += other.FatG
	t.CarbsG += other.CarbsG
	t.SugarG += other.SugarG
	t.FiberG += other.FiberG
}

// Sub subtracts every field of other from t in place.
func (t *Total) Sub(other Total) {
	t.Kcal -= other.Kcal
	t.ProteinG -= other.ProteinG
	t.FatG -= other.FatG
	t.CarbsG -= other.CarbsG
	t.SugarG -= other.SugarG
	t.FiberG -= other.FiberG
}

// Scale returns a copy of t with every field multiplied by factor and
// rounded to the nearest integer.
func (t Total) Scale(factor float64) Total {
	return Total{
		Kcal:     scaleInt(t.Kcal, factor),
		ProteinG: scaleInt(t.ProteinG, factor),
		FatG:     scaleInt(t.FatG, factor),
		CarbsG:   scaleInt(t.CarbsG, factor),
		SugarG:   scaleInt(t.SugarG, factor),
		FiberG:   scaleInt(t.FiberG, factor),
	}
}

// IsZero reports whether every field is zero.
func (t Total) IsZero() bool {
	return t == Total{}
}

// Merge applies a partial field update keyed by JSON field name. Unknown
// keys are ignored and absent keys leave the current value alone, so an
// empty update never resets a summary that already has confirmed totals.
func (t *Total) Merge(updates map[string]int) {
	for key, value := range updates {
		switch key {
		case "kcal":
			t.Kcal = value
		case "protein_g":
			t.ProteinG = value
		case "fat_g":
			t.FatG = value
		case "carbs_g":
			t.CarbsG = value
		case "sugar_g":
			t.SugarG = value
		case "fiber_g":
			t.FiberG = value
		}
	}
}

// Item is a single food entry inside a meal. A zero weight means the
// collaborator did not report one.
type Item struct {
	Name     string `json:"name" validate:"required"`
	WeightG  int    `json:"weight_g,omitempty" validate:"gte=0"`
	Kcal     int    `json:"kcal" validate:"gte=0"`
	ProteinG int    `json:"protein_g" validate:"gte=0"`
	FatG     int    `json:"fat_g" validate:"gte=0"`
	CarbsG   int    `json:"carbs_g" validate:"gte=0"`
	SugarG   int    `json:"sugar_g" validate:"gte=0"`
	FiberG   int    `json:"fiber_g" validate:"gte=0"`
}

// Scale returns a copy of the item with every numeric field multiplied by
// factor and rounded to the nearest integer. The name is unchanged.
func (i Item) Scale(factor float64) Item {
	return Item{
		Name:     i.Name,
		WeightG:  scaleInt(i.WeightG, factor),
		Kcal:     scaleInt(i.Kcal, factor),
		ProteinG: scaleInt(i.ProteinG, factor),
		FatG:     scaleInt(i.FatG, factor),
		CarbsG:   scaleInt(i.CarbsG, factor),
		SugarG:   scaleInt(i.SugarG, factor),
		FiberG:   scaleInt(i.FiberG, factor),
	}
}

// Total returns the nutrition values of the item as a Total.
func (i Item) Total() Total {
	return Total{
		Kcal:     i.Kcal,
		ProteinG: i.ProteinG,
		FatG:     i.FatG,
		CarbsG:   i.CarbsG,
		SugarG:   i.SugarG,
		FiberG:   i.FiberG,
	}
}

// SumItems returns the field-wise sum of the given items' nutrition values.
func SumItems(items []Item) Total {
	var sum Total
	for _, item := range items {
		sum.Add(item.Total())
	}
	return sum
}

func scaleInt(value int, factor float64) int {
	return int(math.Round(float64(value) * factor))
}
