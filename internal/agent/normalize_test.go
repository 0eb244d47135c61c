package agent

import (
	"testing"

	"nutriledger/internal/models"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{150, 150, true},
		{float64(12.4), 12, true},
		{float64(12.6), 13, true},
		{"150", 150, true},
		{"150 kcal", 150, true},
		{"20 g", 20, true},
		{"12,5", 13, true},
		{"about 90 grams", 90, true},
		{"", 0, false},
		{"no numbers here", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseInt(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", `{"items": []}`},
		{"fenced", "```json\n{\"items\": []}\n```"},
		{"fence no lang", "```\n{\"items\": []}\n```"},
		{"wrapped in prose", "Here you go:\n{\"items\": []}\nHope that helps!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := parseJSONBlock(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := data["items"]; !ok {
				t.Fatalf("items missing from %v", data)
			}
		})
	}

	if _, err := parseJSONBlock("not json at all"); err == nil {
		t.Fatal("expected error for non-JSON text")
	}
}

func TestNormalizeMealAliasesAndCoerces(t *testing.T) {
	data, err := parseJSONBlock(`{
		"items": [
			{"name": "oatmeal", "weight_g": "60 g", "calories": 230.4, "protein_g": "8", "carbs_g": 40}
		],
		"total": {"calories": 999}
	}`)
	if err != nil {
		t.Fatal(err)
	}
	items, total, err := normalizeMeal(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	item := items[0]
	if item.Kcal != 230 || item.WeightG != 60 || item.ProteinG != 8 || item.CarbsG != 40 {
		t.Fatalf("coercion wrong: %+v", item)
	}
	// The reported total disagrees with the items; the items win.
	if total.Kcal != 230 {
		t.Fatalf("total not recomputed from items: %+v", total)
	}
}

func TestNormalizeMealTrustsTotalWhenItemsEmptyOfValues(t *testing.T) {
	data, err := parseJSONBlock(`{
		"items": [{"name": "mystery dish"}],
		"total": {"kcal": 350, "protein_g": 12}
	}`)
	if err != nil {
		t.Fatal(err)
	}
	_, total, err := normalizeMeal(data)
	if err != nil {
		t.Fatal(err)
	}
	if total.Kcal != 350 || total.ProteinG != 12 {
		t.Fatalf("reported total not kept: %+v", total)
	}
}

func TestNormalizeMealRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no items", `{"total": {"kcal": 100}}`},
		{"empty items", `{"items": [], "total": {"kcal": 100}}`},
		{"negative kcal", `{"items": [{"name": "x", "kcal": -5}]}`},
		{"item not object", `{"items": ["just a string"]}`},
		{"missing name", `{"items": [{"kcal": 100}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := parseJSONBlock(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := normalizeMeal(data); err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestNormalizeItemNegativeIsInvalid(t *testing.T) {
	_, err := normalizeItem(map[string]any{"name": "x", "protein_g": float64(-1)})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNormalizeTotalNonObject(t *testing.T) {
	if total := normalizeTotal("oops"); !total.IsZero() {
		t.Fatalf("got %+v, want zero", total)
	}
	if total := normalizeTotal(nil); !total.IsZero() {
		t.Fatalf("got %+v, want zero", total)
	}
}

func TestNormalizeMealSumsMultipleItems(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"name": "egg", "kcal": float64(78), "protein_g": float64(6)},
			map[string]any{"name": "toast", "kcal": float64(80), "carbs_g": float64(15)},
		},
	}
	_, total, err := normalizeMeal(data)
	if err != nil {
		t.Fatal(err)
	}
	want := models.Total{Kcal: 158, ProteinG: 6, CarbsG: 15}
	if total != want {
		t.Fatalf("got %+v, want %+v", total, want)
	}
}
