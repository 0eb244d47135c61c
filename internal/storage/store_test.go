package storage

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nutriledger/internal/models"
)

func testMeal(id string, kcal int, pending bool) models.Meal {
	meal := models.NewMeal(id, "lunch", []models.Item{{Name: "food-" + id, Kcal: kcal}}, models.Total{Kcal: kcal}, time.Now().UTC())
	meal.Pending = pending
	return meal
}

func TestLoadMissingReturnsDefault(t *testing.T) {
	store := New(t.TempDir())

	today, err := store.LoadToday("42")
	if err != nil {
		t.Fatal(err)
	}
	if len(today.Meals) != 0 || !today.Summary.IsZero() {
		t.Fatalf("expected empty ledger, got %+v", today)
	}
}

func TestLoadCorruptedReturnsDefault(t *testing.T) {
	store := New(t.TempDir())
	path, err := store.TodayPath("42")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	today, err := store.LoadToday("42")
	if err != nil {
		t.Fatal(err)
	}
	if len(today.Meals) != 0 {
		t.Fatalf("expected empty ledger from corrupted file, got %+v", today)
	}
}

func TestSaveFailedMarshalLeavesFileUntouched(t *testing.T) {
	store := New(t.TempDir())
	path := filepath.Join(store.dataDir, "doc.json")

	type doc struct {
		X float64 `json:"x"`
	}
	if err := store.Save(path, doc{X: 1}); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// NaN is not representable in JSON; the save must fail before any
	// file is touched.
	if err := store.Save(path, doc{X: math.NaN()}); err == nil {
		t.Fatal("expected marshal error")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("file changed after failed save:\nbefore: %s\nafter: %s", before, after)
	}
}

func TestSaveTodayMergePreservesExistingMeals(t *testing.T) {
	store := New(t.TempDir())

	first := &models.Today{Summary: models.Total{Kcal: 50}}
	first.Meals = []models.Meal{testMeal("1", 50, false)}
	if err := store.SaveToday("7", first); err != nil {
		t.Fatal(err)
	}

	// A second writer that never saw meal 1 must not erase it.
	second := &models.Today{Summary: models.Total{Kcal: 150}}
	second.Meals = []models.Meal{testMeal("2", 100, false)}
	if err := store.SaveToday("7", second); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadToday("7")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, meal := range loaded.Meals {
		ids[meal.ID] = true
	}
	if !ids["1"] || !ids["2"] || len(ids) != 2 {
		t.Fatalf("merged meals wrong: %v", ids)
	}
	if loaded.Summary.Kcal != 150 {
		t.Fatalf("incoming summary not authoritative: %+v", loaded.Summary)
	}
}

func TestSaveTodayIncomingWinsOnCollision(t *testing.T) {
	store := New(t.TempDir())

	stale := &models.Today{}
	stale.Meals = []models.Meal{testMeal("1", 50, true)}
	if err := store.SaveToday("7", stale); err != nil {
		t.Fatal(err)
	}

	fresh := &models.Today{Summary: models.Total{Kcal: 80}}
	updated := testMeal("1", 80, false)
	fresh.Meals = []models.Meal{updated}
	if err := store.SaveToday("7", fresh); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadToday("7")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Meals) != 1 {
		t.Fatalf("expected one meal, got %d", len(loaded.Meals))
	}
	if loaded.Meals[0].Pending || loaded.Meals[0].Total.Kcal != 80 {
		t.Fatalf("incoming meal did not win: %+v", loaded.Meals[0])
	}
}

func TestSaveTodayExplicitDeleteSticks(t *testing.T) {
	store := New(t.TempDir())

	full := &models.Today{Summary: models.Total{Kcal: 150}}
	full.Meals = []models.Meal{testMeal("1", 50, false), testMeal("2", 100, false)}
	if err := store.SaveToday("7", full); err != nil {
		t.Fatal(err)
	}

	// Deleting meal 1: the post-deletion set omits it AND names it in the
	// delete list, so the merge cannot resurrect it.
	afterDelete := &models.Today{Summary: models.Total{Kcal: 100}}
	afterDelete.Meals = []models.Meal{testMeal("2", 100, false)}
	if err := store.SaveToday("7", afterDelete, "1"); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadToday("7")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Meals) != 1 || loaded.Meals[0].ID != "2" {
		t.Fatalf("delete did not stick: %+v", loaded.Meals)
	}
}

func TestResetTodayDoesNotResurrect(t *testing.T) {
	store := New(t.TempDir())

	full := &models.Today{Summary: models.Total{Kcal: 150}}
	full.Meals = []models.Meal{testMeal("1", 50, false), testMeal("2", 100, false)}
	if err := store.SaveToday("7", full); err != nil {
		t.Fatal(err)
	}

	if err := store.ResetToday("7"); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.LoadToday("7")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Meals) != 0 || !loaded.Summary.IsZero() {
		t.Fatalf("reset left data behind: %+v", loaded)
	}
}

func TestAtomicWriteProducesValidJSON(t *testing.T) {
	store := New(t.TempDir())

	today := &models.Today{Summary: models.Total{Kcal: 42}}
	today.Meals = []models.Meal{testMeal("1", 42, false)}
	if err := store.SaveToday("9", today); err != nil {
		t.Fatal(err)
	}

	path, err := store.TodayPath("9")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded models.Today
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}

	// No temp files left behind in the user directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() != "today.json" && entry.Name() != "today.json.lock" {
			t.Errorf("unexpected file in user dir: %s", entry.Name())
		}
	}
}

func TestCountersDefaultInterval(t *testing.T) {
	store := New(t.TempDir())

	counters, err := store.LoadCounters("3")
	if err != nil {
		t.Fatal(err)
	}
	if counters.Metrics.MetricsIntervalDays != 30 {
		t.Fatalf("default interval = %d, want 30", counters.Metrics.MetricsIntervalDays)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	history, err := store.LoadHistory("5")
	if err != nil {
		t.Fatal(err)
	}
	history.AppendDay(models.HistoryEntry{Date: "2025-01-01", NumMeals: 2}, 60)
	if err := store.SaveHistory("5", history); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadHistory("5")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Days) != 1 || loaded.Days[0].Date != "2025-01-01" {
		t.Fatalf("history round trip failed: %+v", loaded)
	}
}
