// Package ledger implements the meal lifecycle and the day rollover on top
// of the record store. Every operation reloads the user's documents,
// mutates them and saves them back; no ledger state is cached across
// calls, so concurrent operations on the same user are serialized only by
// the store's per-document locks and its merge-on-save.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"

	"nutriledger/internal/models"
	"nutriledger/internal/storage"
)

// ErrNothingToClose is returned by PrepareClose when the day has no
// confirmed meals and no recorded intake to fall back on.
var ErrNothingToClose = errors.New("no confirmed meals to close")

const defaultHistoryMaxDays = 60

// Service owns the per-user nutrition ledger operations.
type Service struct {
	store          *storage.Store
	historyMaxDays int
}

// New returns a ledger service persisting through store. historyMaxDays
// bounds the closed-day log; zero selects the default of 60.
func New(store *storage.Store, historyMaxDays int) *Service {
	if historyMaxDays <= 0 {
		historyMaxDays = defaultHistoryMaxDays
	}
	return &Service{store: store, historyMaxDays: historyMaxDays}
}

// Today returns the user's current-day ledger.
func (s *Service) Today(userID string) (*models.Today, error) {
	return s.store.LoadToday(userID)
}

// History returns the user's closed-day log.
func (s *Service) History(userID string) (*models.History, error) {
	return s.store.LoadHistory(userID)
}

// LogMeal appends a meal to the user's ledger and persists it. The meal is
// stored in whatever pending state it carries; only confirmation moves its
// total into the summary.
func (s *Service) LogMeal(userID string, meal models.Meal) error {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return err
	}
	today.AppendMeal(meal)
	return s.store.SaveToday(userID, today)
}

// ConfirmResult reports the outcome of a confirmation.
type ConfirmResult struct {
	Meal models.Meal
	// PreviousSummary is the day summary before this meal's total was
	// folded in. Context analysis needs the pre-meal view; sending the
	// already-updated summary would count the meal twice.
	PreviousSummary models.Total
	// AlreadyConfirmed is set when the meal had been confirmed before;
	// the summary was left untouched.
	AlreadyConfirmed bool
}

// ConfirmMeal flips a pending meal to confirmed and persists the ledger
// before returning. Any slow collaborator call the caller makes afterwards
// (context analysis) therefore cannot roll back or delay the committed
// confirmation. Confirming twice is a no-op.
func (s *Service) ConfirmMeal(userID, mealID string) (*ConfirmResult, error) {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return nil, err
	}
	meal := today.Meal(mealID)
	if meal == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrMealNotFound, mealID)
	}
	if !meal.Pending {
		return &ConfirmResult{Meal: *meal, PreviousSummary: today.Summary, AlreadyConfirmed: true}, nil
	}
	previous := today.Summary
	today.ConfirmMeal(mealID)
	if err := s.store.SaveToday(userID, today); err != nil {
		return nil, err
	}
	return &ConfirmResult{Meal: *meal, PreviousSummary: previous}, nil
}

// ApplyContext merges the output of the context-analysis collaborator into
// the ledger: an optional comment appended to the meal and an optional
// partial revision of the day summary. It runs through the same persisted
// update path as any other edit.
func (s *Service) ApplyContext(userID, mealID, comment string, summary map[string]int) (*models.Today, error) {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return nil, err
	}
	if comment != "" {
		if meal := today.Meal(mealID); meal != nil {
			if meal.Comment == "" {
				meal.Comment = comment
			} else {
				meal.Comment += " " + comment
			}
		}
	}
	today.Summary.Merge(summary)
	if err := s.store.SaveToday(userID, today); err != nil {
		return nil, err
	}
	return today, nil
}

// RescaleMeal records how much of the meal was actually eaten and persists
// the result. percent must be within 1-100.
func (s *Service) RescaleMeal(userID, mealID string, percent int) (*models.Meal, error) {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return nil, err
	}
	if err := today.RescaleMeal(mealID, percent); err != nil {
		return nil, err
	}
	if err := s.store.SaveToday(userID, today); err != nil {
		return nil, err
	}
	return today.Meal(mealID), nil
}

// EditUpdate is a wholesale replacement of a meal's content, produced by
// the meal editor collaborator plus the user's comment that triggered it.
type EditUpdate struct {
	Items         []models.Item
	Total         models.Total
	Clarification string
	Comment       string
}

// EditMeal replaces a meal's items and total and persists the ledger. The
// user comment is appended to both the meal comment and the stored
// description, mirroring how the meal was described incrementally.
func (s *Service) EditMeal(userID, mealID string, update EditUpdate) (*models.Meal, error) {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return nil, err
	}
	meal := today.Meal(mealID)
	if meal == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrMealNotFound, mealID)
	}
	if update.Comment != "" {
		if meal.Comment == "" {
			meal.Comment = update.Comment
		} else {
			meal.Comment += " " + update.Comment
		}
		if meal.UserDesc == "" {
			meal.UserDesc = update.Comment
		} else {
			meal.UserDesc += " " + update.Comment
		}
	}
	meal.Clarification = update.Clarification
	if err := today.EditMeal(mealID, update.Items, update.Total); err != nil {
		return nil, err
	}
	if err := s.store.SaveToday(userID, today); err != nil {
		return nil, err
	}
	return today.Meal(mealID), nil
}

// DeleteMeal removes a meal and persists the ledger, naming the removed id
// so the store's merge cannot mistake the deletion for a stale snapshot.
func (s *Service) DeleteMeal(userID, mealID string) error {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return err
	}
	if err := today.DeleteMeal(mealID); err != nil {
		return err
	}
	return s.store.SaveToday(userID, today, mealID)
}

// PrepareClose collects the day's confirmed meals into a history entry
// without committing anything. The caller typically shows the entry to the
// user (plus a day-review comment) and then calls CloseDay.
//
// A day with no confirmed meals but a non-zero summary is an
// inconsistent-but-recoverable state: the summary is presumed to reflect
// confirmed intent even though the per-meal flags were lost, so every meal
// is auto-confirmed and the anomaly is logged before proceeding.
func (s *Service) PrepareClose(userID string, now time.Time) (*models.HistoryEntry, *models.Today, error) {
	today, err := s.store.LoadToday(userID)
	if err != nil {
		return nil, nil, err
	}
	confirmed := today.Confirmed()
	if len(confirmed) == 0 {
		if today.Summary.IsZero() {
			return nil, nil, ErrNothingToClose
		}
		log.Printf("User %s: non-empty summary with zero confirmed meals, auto-confirming %d meals", userID, len(today.Meals))
		summary := today.Summary
		for _, meal := range today.Meals {
			today.ConfirmMeal(meal.ID)
		}
		// The summary already reflected the confirmed intent; keep it
		// rather than the double-counted value.
		today.Summary = summary
		if err := s.store.SaveToday(userID, today); err != nil {
			return nil, nil, err
		}
		confirmed = today.Confirmed()
		if len(confirmed) == 0 {
			return nil, nil, ErrNothingToClose
		}
	}

	entry := models.HistoryEntry{
		Date:     now.UTC().Format("2006-01-02"),
		NumMeals: len(confirmed),
	}
	for _, meal := range confirmed {
		entry.Meals = append(entry.Meals, meal.Brief())
	}
	return &entry, today, nil
}

// CloseResult reports what CloseDay committed.
type CloseResult struct {
	DaysClosed int
	// MetricsDue is set when enough days have been closed since the user
	// was last asked for body metrics.
	MetricsDue bool
}

// CloseDay commits a prepared history entry: it appends the entry to the
// bounded history log, bumps the day counter and resets the ledger to a
// fresh empty day. The three writes are independently durable; a crash in
// between leaves the documents at most one step apart, which is an
// accepted inconsistency window rather than a transactional guarantee.
func (s *Service) CloseDay(userID string, entry *models.HistoryEntry) (*CloseResult, error) {
	history, err := s.store.LoadHistory(userID)
	if err != nil {
		return nil, err
	}
	history.AppendDay(*entry, s.historyMaxDays)
	if err := s.store.SaveHistory(userID, history); err != nil {
		return nil, err
	}

	counters, err := s.store.LoadCounters(userID)
	if err != nil {
		return nil, err
	}
	counters.TotalDaysClosed++
	result := &CloseResult{DaysClosed: counters.TotalDaysClosed}
	if counters.TotalDaysClosed-counters.Metrics.LastMetricsDayIndex >= counters.Metrics.MetricsIntervalDays {
		result.MetricsDue = true
		counters.Metrics.LastMetricsDayIndex = counters.TotalDaysClosed
	}
	if err := s.store.SaveCounters(userID, counters); err != nil {
		return nil, err
	}

	if err := s.store.ResetToday(userID); err != nil {
		return nil, err
	}
	return result, nil
}
