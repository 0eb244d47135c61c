package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nutriledger/internal/models"
)

// Agents bundles the collaborator operations behind one completer.
type Agents struct {
	completer Completer
}

// New returns the collaborator set backed by completer.
func New(completer Completer) *Agents {
	return &Agents{completer: completer}
}

// Intake analyzes a meal description (text plus optional photo) and
// returns a candidate pending meal. The ledger accepts it as a draft; the
// user still has to confirm it.
func (a *Agents) Intake(ctx context.Context, mealType, userText string, image []byte) (*models.Meal, error) {
	prompt := fmt.Sprintf(mealJSONPrompt, mealType, userText)
	response, err := a.completer.Complete(ctx, prompt, image)
	if err != nil {
		return nil, err
	}
	data, err := parseJSONBlock(response)
	if err != nil {
		return nil, err
	}
	items, total, err := normalizeMeal(data)
	if err != nil {
		return nil, err
	}

	meal := models.NewMeal(uuid.New().String(), mealType, items, total, time.Now().UTC())
	meal.UserDesc = userText
	meal.Clarification = stringField(data, "clarification")
	return &meal, nil
}

// EditResult is a validated replacement for a meal's content.
type EditResult struct {
	Items         []models.Item
	Total         models.Total
	Clarification string
}

// EditMeal asks the model to rework an existing meal according to a user
// comment. On ErrInvalidPayload the caller keeps the original meal
// unchanged; there is no partial merge.
func (a *Agents) EditMeal(ctx context.Context, meal models.Meal, comment string) (*EditResult, error) {
	mealJSON, err := json.Marshal(meal)
	if err != nil {
		return nil, fmt.Errorf("marshaling meal: %w", err)
	}
	prompt := fmt.Sprintf(updateMealPrompt, mealJSON, meal.UserDesc, comment)
	response, err := a.completer.Complete(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	data, err := parseJSONBlock(response)
	if err != nil {
		return nil, err
	}
	items, total, err := normalizeMeal(data)
	if err != nil {
		return nil, err
	}
	return &EditResult{
		Items:         items,
		Total:         total,
		Clarification: stringField(data, "clarification"),
	}, nil
}

// ContextResult is the context agent's view of a newly confirmed meal.
type ContextResult struct {
	Comment string
	// Summary is a partial revision of the day totals keyed by JSON field
	// name. Empty means the recorded totals stand.
	Summary map[string]int
}

// AnalyzeContext comments on a newly confirmed meal against the day so far
// and the user's norms. daySummary must be the totals from before the meal
// was folded in, otherwise the model sees the meal twice.
func (a *Agents) AnalyzeContext(ctx context.Context, norms models.Norms, daySummary, mealTotal models.Total) (*ContextResult, error) {
	prompt := fmt.Sprintf(contextAnalysisPrompt, mustJSON(norms), mustJSON(daySummary), mustJSON(mealTotal))
	response, err := a.completer.Complete(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	data, err := parseJSONBlock(response)
	if err != nil {
		return nil, err
	}

	result := &ContextResult{Comment: stringField(data, "context_comment")}
	if raw, ok := data["summary"].(map[string]any); ok {
		result.Summary = make(map[string]int)
		for _, key := range nutrientKs {
			if value, ok := parseInt(raw[key]); ok {
				result.Summary[key] = value
			}
		}
	}
	return result, nil
}

// AnalyzeDay reviews a whole day of confirmed meals and returns a short
// narrative comment for the history entry.
func (a *Agents) AnalyzeDay(ctx context.Context, norms models.Norms, summary models.Total, meals []models.MealBrief) (string, error) {
	prompt := fmt.Sprintf(dayAnalysisPrompt, mustJSON(norms), mustJSON(meals), mustJSON(summary))
	response, err := a.completer.Complete(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
