package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"nutriledger/internal/models"
)

// Model responses are dynamic JSON: numbers arrive as floats or as strings
// with units, keys drift ("calories" for "kcal"), whole objects go
// missing. Everything here coerces that into the strict Item/Total schema
// or rejects it, so nothing loosely typed ever reaches the ledger.

var (
	validate   = validator.New()
	numberRe   = regexp.MustCompile(`[-+]?[0-9]+(?:[\s,.][0-9]+)?`)
	jsonObjRe  = regexp.MustCompile(`(?s)\{.*\}`)
	nutrientKs = []string{"kcal", "protein_g", "fat_g", "carbs_g", "sugar_g", "fiber_g"}
)

// parseInt converts a dynamic JSON value to an int. Strings may carry
// units ("150 kcal", "20 g"); commas are treated as decimal separators.
func parseInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case float64:
		return int(math.Round(v)), true
	case string:
		m := numberRe.FindString(v)
		if m == "" {
			return 0, false
		}
		m = strings.ReplaceAll(m, " ", "")
		m = strings.ReplaceAll(m, ",", ".")
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	default:
		return 0, false
	}
}

// parseJSONBlock extracts a JSON object from model output that may be
// wrapped in markdown fences or surrounding prose.
func parseJSONBlock(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	if m := jsonObjRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidPayload)
}

// aliasKeys rewrites alternate key spellings in place ("calories" is the
// common drift for "kcal").
func aliasKeys(obj map[string]any) {
	if v, ok := obj["calories"]; ok {
		if _, has := obj["kcal"]; !has {
			obj["kcal"] = v
		}
		delete(obj, "calories")
	}
}

func normalizeItem(raw any) (models.Item, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Item{}, fmt.Errorf("%w: item is not an object", ErrInvalidPayload)
	}
	aliasKeys(obj)

	name, _ := obj["name"].(string)
	item := models.Item{Name: strings.TrimSpace(name)}
	if v, ok := parseInt(obj["weight_g"]); ok {
		item.WeightG = v
	}
	for _, key := range nutrientKs {
		value, ok := parseInt(obj[key])
		if !ok {
			continue
		}
		switch key {
		case "kcal":
			item.Kcal = value
		case "protein_g":
			item.ProteinG = value
		case "fat_g":
			item.FatG = value
		case "carbs_g":
			item.CarbsG = value
		case "sugar_g":
			item.SugarG = value
		case "fiber_g":
			item.FiberG = value
		}
	}
	if err := validate.Struct(item); err != nil {
		return models.Item{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return item, nil
}

func normalizeTotal(raw any) models.Total {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Total{}
	}
	aliasKeys(obj)

	var total models.Total
	for _, key := range nutrientKs {
		value, ok := parseInt(obj[key])
		if !ok {
			continue
		}
		switch key {
		case "kcal":
			total.Kcal = value
		case "protein_g":
			total.ProteinG = value
		case "fat_g":
			total.FatG = value
		case "carbs_g":
			total.CarbsG = value
		case "sugar_g":
			total.SugarG = value
		case "fiber_g":
			total.FiberG = value
		}
	}
	return total
}

// normalizeMeal validates and coerces a raw model response into items plus
// a consistent total. When the items carry their own values the total is
// recomputed from them, keeping the meal invariant (total == sum of items)
// from the moment the data enters the system; a reported total is only
// trusted when the items are empty of values.
func normalizeMeal(data map[string]any) ([]models.Item, models.Total, error) {
	rawItems, _ := data["items"].([]any)
	if len(rawItems) == 0 {
		return nil, models.Total{}, fmt.Errorf("%w: no items", ErrInvalidPayload)
	}
	items := make([]models.Item, 0, len(rawItems))
	for _, raw := range rawItems {
		item, err := normalizeItem(raw)
		if err != nil {
			return nil, models.Total{}, err
		}
		items = append(items, item)
	}

	total := normalizeTotal(data["total"])
	if computed := models.SumItems(items); !computed.IsZero() {
		total = computed
	}
	if err := validate.Struct(total); err != nil {
		return nil, models.Total{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return items, total, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}
