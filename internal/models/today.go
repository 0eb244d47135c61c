package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMealNotFound is returned when an operation targets a meal id that
	// is not present in today's ledger.
	ErrMealNotFound = errors.New("meal not found")

	// ErrPercentOutOfRange is returned when a rescale asks for a percent
	// outside 1-100.
	ErrPercentOutOfRange = errors.New("percent eaten must be between 1 and 100")
)

// Today is the current day's ledger: the ordered list of logged meals plus
// the running summary over the confirmed ones. The invariant every mutating
// method preserves is that Summary equals the field-wise sum of the totals
// of all meals with Pending == false. Pending meals never contribute.
type Today struct {
	Meals       []Meal    `json:"meals"`
	Summary     Total     `json:"summary"`
	DayClosed   bool      `json:"day_closed"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// AppendMeal adds a meal to the ledger. The summary is not touched here;
// pending meals only enter it on confirmation.
func (t *Today) AppendMeal(meal Meal) {
	t.Meals = append(t.Meals, meal)
	t.LastUpdated = meal.Timestamp
}

// Meal returns a pointer to the meal with the given id, or nil.
func (t *Today) Meal(id string) *Meal {
	for i := range t.Meals {
		if t.Meals[i].ID == id {
			return &t.Meals[i]
		}
	}
	return nil
}

// ConfirmMeal flips a meal out of the pending state and folds its total
// into the summary. Confirming an unknown or already confirmed meal does
// nothing, so a duplicate confirmation can never double-count.
func (t *Today) ConfirmMeal(id string) {
	meal := t.Meal(id)
	if meal == nil || !meal.Pending {
		return
	}
	meal.Pending = false
	t.Summary.Add(meal.Total)
	t.LastUpdated = meal.Timestamp
}

// RescaleMeal changes how much of a meal was actually eaten. The scale
// factor is computed from the meal's current percent, so repeated rescales
// compose from the last applied value rather than from the original. For a
// confirmed meal the summary is adjusted by the total delta in the same
// step.
func (t *Today) RescaleMeal(id string, percent int) error {
	if percent < 1 || percent > 100 {
		return fmt.Errorf("%w: got %d", ErrPercentOutOfRange, percent)
	}
	meal := t.Meal(id)
	if meal == nil {
		return fmt.Errorf("%w: %s", ErrMealNotFound, id)
	}
	factor := float64(percent) / float64(meal.PercentEaten)
	oldTotal := meal.Total
	scaled := make([]Item, len(meal.Items))
	for i, item := range meal.Items {
		scaled[i] = item.Scale(factor)
	}
	meal.Items = scaled
	// The total is scaled directly, not recomputed from the scaled items:
	// items may carry no per-item values when only the meal total was
	// known, and independent rounding may drift a recomputed sum by a gram.
	meal.Total = oldTotal.Scale(factor)
	meal.PercentEaten = percent
	if !meal.Pending {
		t.Summary.Sub(oldTotal)
		t.Summary.Add(meal.Total)
	}
	t.LastUpdated = time.Now().UTC()
	return nil
}

// EditMeal replaces a meal's items and total wholesale, typically with the
// output of the meal editor collaborator. For a confirmed meal the summary
// is adjusted by the total delta in the same step.
func (t *Today) EditMeal(id string, items []Item, total Total) error {
	meal := t.Meal(id)
	if meal == nil {
		return fmt.Errorf("%w: %s", ErrMealNotFound, id)
	}
	oldTotal := meal.Total
	meal.Items = items
	meal.Total = total
	if !meal.Pending {
		t.Summary.Sub(oldTotal)
		t.Summary.Add(total)
	}
	t.LastUpdated = time.Now().UTC()
	return nil
}

// DeleteMeal removes a meal from the ledger, subtracting its total from the
// summary first if it was confirmed.
func (t *Today) DeleteMeal(id string) error {
	for i := range t.Meals {
		if t.Meals[i].ID != id {
			continue
		}
		if !t.Meals[i].Pending {
			t.Summary.Sub(t.Meals[i].Total)
		}
		t.Meals = append(t.Meals[:i], t.Meals[i+1:]...)
		t.LastUpdated = time.Now().UTC()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMealNotFound, id)
}

// Confirmed returns the meals that have been confirmed, in insertion order.
func (t *Today) Confirmed() []Meal {
	var confirmed []Meal
	for _, meal := range t.Meals {
		if !meal.Pending {
			confirmed = append(confirmed, meal)
		}
	}
	return confirmed
}
