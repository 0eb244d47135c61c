package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"nutriledger/internal/models"
)

const (
	todayFile    = "today.json"
	profileFile  = "profile.json"
	historyFile  = "history.json"
	countersFile = "counters.json"
)

func (s *Store) documentPath(userID, name string) (string, error) {
	dir, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// TodayPath returns the path of the user's today.json.
func (s *Store) TodayPath(userID string) (string, error) {
	return s.documentPath(userID, todayFile)
}

// LoadToday reads the user's current-day ledger, returning an empty one if
// none has been persisted yet.
func (s *Store) LoadToday(userID string) (*models.Today, error) {
	path, err := s.documentPath(userID, todayFile)
	if err != nil {
		return nil, err
	}
	var today models.Today
	if err := s.Load(path, &today); err != nil {
		return nil, err
	}
	return &today, nil
}

// SaveToday persists the ledger with merge-on-save semantics. Under the
// document lock the on-disk ledger is reloaded and the meal sets are
// unioned by id: the incoming version wins on collision, meals that exist
// only on disk are preserved in their original position. The incoming
// summary, flags and timestamp are authoritative.
//
// A meal merely absent from today.Meals is indistinguishable from a stale
// snapshot that never saw it, so deletions must be named explicitly in
// deleted; those ids are dropped from the union. This is what stops a
// concurrent "log meal B" from silently erasing an in-flight "confirm meal
// A" on the same user, while still letting deletes stick.
func (s *Store) SaveToday(userID string, today *models.Today, deleted ...string) error {
	path, err := s.documentPath(userID, todayFile)
	if err != nil {
		return err
	}
	return s.withLock(path, func() error {
		var onDisk models.Today
		readJSON(path, &onDisk)

		merged := mergeToday(&onDisk, today, deleted)
		data, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", path, err)
		}
		return writeFileAtomic(path, data)
	})
}

// mergeToday unions the on-disk meal set with the incoming one. Disk order
// is kept for surviving meals; new incoming meals are appended in their
// own order.
func mergeToday(onDisk, incoming *models.Today, deleted []string) *models.Today {
	removed := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		removed[id] = true
	}
	incomingByID := make(map[string]*models.Meal, len(incoming.Meals))
	for i := range incoming.Meals {
		incomingByID[incoming.Meals[i].ID] = &incoming.Meals[i]
	}

	merged := models.Today{
		Summary:     incoming.Summary,
		DayClosed:   incoming.DayClosed,
		LastUpdated: incoming.LastUpdated,
	}
	seen := make(map[string]bool)
	for _, meal := range onDisk.Meals {
		if removed[meal.ID] {
			continue
		}
		if fresh, ok := incomingByID[meal.ID]; ok {
			merged.Meals = append(merged.Meals, *fresh)
		} else {
			merged.Meals = append(merged.Meals, meal)
		}
		seen[meal.ID] = true
	}
	for _, meal := range incoming.Meals {
		if !seen[meal.ID] && !removed[meal.ID] {
			merged.Meals = append(merged.Meals, meal)
		}
	}
	return &merged
}

// ResetToday replaces the ledger document wholesale with a fresh empty
// one. Used by the day rollover; unlike SaveToday it must not resurrect
// meals still on disk.
func (s *Store) ResetToday(userID string) error {
	path, err := s.documentPath(userID, todayFile)
	if err != nil {
		return err
	}
	return s.Save(path, &models.Today{})
}

// LoadProfile reads the user's profile, or an empty one.
func (s *Store) LoadProfile(userID string) (*models.Profile, error) {
	path, err := s.documentPath(userID, profileFile)
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := s.Load(path, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile persists the user's profile.
func (s *Store) SaveProfile(userID string, profile *models.Profile) error {
	path, err := s.documentPath(userID, profileFile)
	if err != nil {
		return err
	}
	return s.Save(path, profile)
}

// LoadHistory reads the user's closed-day log, or an empty one.
func (s *Store) LoadHistory(userID string) (*models.History, error) {
	path, err := s.documentPath(userID, historyFile)
	if err != nil {
		return nil, err
	}
	var history models.History
	if err := s.Load(path, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// SaveHistory persists the user's closed-day log.
func (s *Store) SaveHistory(userID string, history *models.History) error {
	path, err := s.documentPath(userID, historyFile)
	if err != nil {
		return err
	}
	return s.Save(path, history)
}

// LoadCounters reads the user's counters, applying the default metrics
// interval when the document is new.
func (s *Store) LoadCounters(userID string) (*models.Counters, error) {
	path, err := s.documentPath(userID, countersFile)
	if err != nil {
		return nil, err
	}
	var counters models.Counters
	if err := s.Load(path, &counters); err != nil {
		return nil, err
	}
	if counters.Metrics.MetricsIntervalDays == 0 {
		counters.Metrics.MetricsIntervalDays = 30
	}
	return &counters, nil
}

// SaveCounters persists the user's counters.
func (s *Store) SaveCounters(userID string, counters *models.Counters) error {
	path, err := s.documentPath(userID, countersFile)
	if err != nil {
		return err
	}
	return s.Save(path, counters)
}
