// Package norms computes daily nutrition targets from a user's physical
// profile. The values are indicative defaults, not medical advice; the
// ledger only reads them to report progress.
package norms

import (
	"fmt"
	"math"

	"nutriledger/internal/models"
)

// Input describes the profile fields the formulas need.
type Input struct {
	Gender        string  `json:"gender" validate:"required,oneof=male female"`
	Age           int     `json:"age" validate:"required,gt=0,lt=130"`
	HeightCM      float64 `json:"height_cm" validate:"required,gt=0"`
	WeightKG      float64 `json:"weight_kg" validate:"required,gt=0"`
	ActivityLevel string  `json:"activity_level" validate:"required,oneof=sedentary moderate high"`
	GoalType      string  `json:"goal_type" validate:"required,oneof=lose_weight maintain gain_weight"`
}

// BMR computes basal metabolic rate with the Mifflin-St Jeor equation.
func BMR(gender string, age int, heightCM, weightKG float64) (float64, error) {
	bmr := 10*weightKG + 6.25*heightCM - 5*float64(age)
	switch gender {
	case "male":
		bmr += 5
	case "female":
		bmr -= 161
	default:
		return 0, fmt.Errorf("unsupported gender: %q", gender)
	}
	return bmr, nil
}

// ActivityFactor returns the TDEE multiplier for an activity level.
func ActivityFactor(level string) (float64, error) {
	switch level {
	case "sedentary":
		return 1.2, nil
	case "moderate":
		return 1.45, nil
	case "high":
		return 1.7, nil
	default:
		return 0, fmt.Errorf("unknown activity level: %q", level)
	}
}

// TargetCalories adjusts TDEE for the user's goal: -500 kcal to lose
// weight, +300 to gain, unchanged to maintain.
func TargetCalories(tdee float64, goalType string) (float64, error) {
	switch goalType {
	case "lose_weight":
		return tdee - 500, nil
	case "maintain":
		return tdee, nil
	case "gain_weight":
		return tdee + 300, nil
	default:
		return 0, fmt.Errorf("unknown goal type: %q", goalType)
	}
}

// Macros computes default macronutrient targets: 1.6 g protein per kg body
// mass, 30% of calories as fat, the remainder as carbohydrates.
func Macros(weightKG, targetKcal float64) map[string]int {
	proteinG := int(math.Round(1.6 * weightKG))
	fatG := int(math.Round(0.3 * targetKcal / 9))
	remaining := targetKcal - float64(proteinG*4+fatG*9)
	carbsG := int(math.Round(math.Max(remaining, 0) / 4))
	return map[string]int{
		"protein_g": proteinG,
		"fat_g":     fatG,
		"carbs_g":   carbsG,
	}
}

// Compute derives the full set of daily norms from a profile. Fiber and
// water minimums are fixed recommendations: 25 g fiber, 30 ml water per kg
// body weight.
func Compute(in Input) (models.Norms, error) {
	bmr, err := BMR(in.Gender, in.Age, in.HeightCM, in.WeightKG)
	if err != nil {
		return models.Norms{}, err
	}
	factor, err := ActivityFactor(in.ActivityLevel)
	if err != nil {
		return models.Norms{}, err
	}
	tdee := bmr * factor
	target, err := TargetCalories(tdee, in.GoalType)
	if err != nil {
		return models.Norms{}, err
	}
	return models.Norms{
		BMRKcal:    int(math.Round(bmr)),
		TDEEKcal:   int(math.Round(tdee)),
		TargetKcal: int(math.Round(target)),
		Macros:     Macros(in.WeightKG, target),
		FiberMinG:  25,
		WaterMinML: int(in.WeightKG * 30),
	}, nil
}
