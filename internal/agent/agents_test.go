package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutriledger/internal/models"
)

// stubCompleter returns a canned response or error and records the last
// prompt it was given.
type stubCompleter struct {
	response   string
	err        error
	lastPrompt string
	lastImage  []byte
}

func (s *stubCompleter) Load(context.Context) error { return nil }

func (s *stubCompleter) Complete(_ context.Context, prompt string, image []byte) (string, error) {
	s.lastPrompt = prompt
	s.lastImage = image
	return s.response, s.err
}

func TestIntakeBuildsPendingMeal(t *testing.T) {
	stub := &stubCompleter{response: "```json\n" + `{
		"items": [{"name": "borscht", "weight_g": 300, "kcal": 180, "protein_g": 6, "fat_g": 8, "carbs_g": 20}],
		"total": {"kcal": 180},
		"clarification": "With sour cream?"
	}` + "\n```"}
	agents := New(stub)

	meal, err := agents.Intake(context.Background(), "lunch", "a bowl of borscht", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if meal.ID == "" {
		t.Fatal("meal has no id")
	}
	if !meal.Pending {
		t.Fatal("intake meal must start pending")
	}
	if meal.PercentEaten != 100 {
		t.Fatalf("percent = %d, want 100", meal.PercentEaten)
	}
	if meal.Type != "lunch" || meal.UserDesc != "a bowl of borscht" {
		t.Fatalf("meal metadata wrong: %+v", meal)
	}
	if meal.Clarification != "With sour cream?" {
		t.Fatalf("clarification = %q", meal.Clarification)
	}
	if meal.Total.Kcal != 180 {
		t.Fatalf("total = %+v", meal.Total)
	}
	if len(stub.lastImage) == 0 {
		t.Fatal("image not forwarded to the model")
	}
}

func TestIntakeUnavailablePassesThrough(t *testing.T) {
	agents := New(&stubCompleter{err: ErrUnavailable})
	if _, err := agents.Intake(context.Background(), "lunch", "soup", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestIntakeGarbageIsInvalidPayload(t *testing.T) {
	agents := New(&stubCompleter{response: "I cannot help with that."})
	if _, err := agents.Intake(context.Background(), "lunch", "soup", nil); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("got %v, want ErrInvalidPayload", err)
	}
}

func TestEditMealReturnsReplacement(t *testing.T) {
	stub := &stubCompleter{response: `{
		"items": [{"name": "fried rice", "kcal": 520, "fat_g": 18}],
		"total": {"kcal": 520}
	}`}
	agents := New(stub)

	meal := models.NewMeal("m1", "dinner", []models.Item{{Name: "rice", Kcal: 300}}, models.Total{Kcal: 300}, time.Now().UTC())
	meal.UserDesc = "rice"

	result, err := agents.EditMeal(context.Background(), meal, "it was fried in oil")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 1 || result.Items[0].Name != "fried rice" {
		t.Fatalf("items = %+v", result.Items)
	}
	if result.Total.Kcal != 520 {
		t.Fatalf("total = %+v", result.Total)
	}
}

func TestEditMealInvalidLeavesFallbackToCaller(t *testing.T) {
	agents := New(&stubCompleter{response: `{"items": []}`})
	meal := models.NewMeal("m1", "dinner", []models.Item{{Name: "rice", Kcal: 300}}, models.Total{Kcal: 300}, time.Now().UTC())

	if _, err := agents.EditMeal(context.Background(), meal, "more please"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("got %v, want ErrInvalidPayload", err)
	}
}

func TestAnalyzeContextPartialSummary(t *testing.T) {
	agents := New(&stubCompleter{response: `{
		"context_comment": "Protein-heavy lunch, well within target.",
		"summary": {"kcal": "1250 kcal", "protein_g": 80}
	}`})

	result, err := agents.AnalyzeContext(context.Background(), models.Norms{}, models.Total{Kcal: 900}, models.Total{Kcal: 350})
	if err != nil {
		t.Fatal(err)
	}
	if result.Comment == "" {
		t.Fatal("comment missing")
	}
	if result.Summary["kcal"] != 1250 || result.Summary["protein_g"] != 80 {
		t.Fatalf("summary = %v", result.Summary)
	}
	if _, ok := result.Summary["fat_g"]; ok {
		t.Fatal("absent field should stay absent")
	}
}

func TestAnalyzeContextNoSummary(t *testing.T) {
	agents := New(&stubCompleter{response: `{"context_comment": "Looks fine."}`})

	result, err := agents.AnalyzeContext(context.Background(), models.Norms{}, models.Total{}, models.Total{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Summary) != 0 {
		t.Fatalf("summary should be empty: %v", result.Summary)
	}
}

func TestAnalyzeDayTrimsResponse(t *testing.T) {
	agents := New(&stubCompleter{response: "\n- good protein\n- low fiber\n"})

	comment, err := agents.AnalyzeDay(context.Background(), models.Norms{}, models.Total{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if comment != "- good protein\n- low fiber" {
		t.Fatalf("comment = %q", comment)
	}
}

func TestDisabledCompleterIsUnavailable(t *testing.T) {
	completer := NewCompleter(Config{})
	if err := completer.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := completer.Complete(context.Background(), "hi", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}
