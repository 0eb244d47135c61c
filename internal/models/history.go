package models

// MealBrief is the condensed record of one meal kept in history after the
// day it belongs to has been closed.
type MealBrief struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Kcal     int    `json:"kcal"`
	ProteinG int    `json:"protein_g"`
	FatG     int    `json:"fat_g"`
	CarbsG   int    `json:"carbs_g"`
	SugarG   int    `json:"sugar_g"`
	FiberG   int    `json:"fiber_g"`
}

// HistoryEntry is one closed day.
type HistoryEntry struct {
	Date     string      `json:"date"`
	NumMeals int         `json:"num_meals"`
	Meals    []MealBrief `json:"meals"`
	Comment  string      `json:"comment,omitempty"`
}

// History is the bounded log of closed days, oldest first.
type History struct {
	Days []HistoryEntry `json:"days"`
}

// AppendDay appends a closed day and evicts the oldest entries until the
// log holds at most maxDays.
func (h *History) AppendDay(entry HistoryEntry, maxDays int) {
	h.Days = append(h.Days, entry)
	if maxDays > 0 && len(h.Days) > maxDays {
		h.Days = h.Days[len(h.Days)-maxDays:]
	}
}

// MetricsSchedule tracks when the user was last asked for body metrics and
// how often to ask again, measured in closed days.
type MetricsSchedule struct {
	LastMetricsDayIndex int `json:"last_metrics_day_index"`
	MetricsIntervalDays int `json:"metrics_interval_days"`
}

// Counters are simple per-user monotonic counters, persisted independently
// of the ledger.
type Counters struct {
	TotalDaysClosed int             `json:"total_days_closed"`
	Metrics         MetricsSchedule `json:"metrics"`
}
