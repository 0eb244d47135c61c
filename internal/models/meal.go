package models

import (
	"encoding/json"
	"time"
)

// Meal is one logged eating event. A meal starts out pending (a draft the
// user has not confirmed) and contributes to the day's summary only after
// confirmation. The Total field always equals the sum of the items' values;
// operations that change the items recompute it.
type Meal struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Items         []Item    `json:"items"`
	Total         Total     `json:"total"`
	Pending       bool      `json:"pending"`
	Timestamp     time.Time `json:"timestamp"`
	PercentEaten  int       `json:"percent_eaten"`
	UserDesc      string    `json:"user_desc,omitempty"`
	ImageRef      string    `json:"image_ref,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	Clarification string    `json:"clarification,omitempty"`
}

// NewMeal builds a pending meal with the given id and content. PercentEaten
// starts at 100; rescaling composes from whatever the current value is.
func NewMeal(id, mealType string, items []Item, total Total, now time.Time) Meal {
	return Meal{
		ID:           id,
		Type:         mealType,
		Items:        items,
		Total:        total,
		Pending:      true,
		Timestamp:    now,
		PercentEaten: 100,
	}
}

// UnmarshalJSON decodes a meal, defaulting PercentEaten to 100 when the
// document omits it. Rescaling divides by the current percent, so a zero
// slipping in from a partial document would poison every later rescale.
func (m *Meal) UnmarshalJSON(data []byte) error {
	type plain Meal
	decoded := plain{PercentEaten: 100}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*m = Meal(decoded)
	return nil
}

// DisplayName returns a short name for the meal: the item names joined with
// commas, or the user's own description when no items were recognised.
func (m Meal) DisplayName() string {
	if len(m.Items) == 0 {
		return m.UserDesc
	}
	name := m.Items[0].Name
	for _, item := range m.Items[1:] {
		name += ", " + item.Name
	}
	return name
}

// Brief returns the condensed form of the meal stored in history entries.
func (m Meal) Brief() MealBrief {
	return MealBrief{
		Type:     m.Type,
		Name:     m.DisplayName(),
		Kcal:     m.Total.Kcal,
		ProteinG: m.Total.ProteinG,
		FatG:     m.Total.FatG,
		CarbsG:   m.Total.CarbsG,
		SugarG:   m.Total.SugarG,
		FiberG:   m.Total.FiberG,
	}
}
