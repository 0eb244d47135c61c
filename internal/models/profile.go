package models

// Norms are the per-user daily targets the ledger reports progress
// against. They are computed once from the profile and are read-only from
// the ledger's point of view.
type Norms struct {
	BMRKcal    int            `json:"BMR_kcal"`
	TDEEKcal   int            `json:"TDEE_kcal"`
	TargetKcal int            `json:"target_kcal"`
	Macros     map[string]int `json:"macros"`
	FiberMinG  int            `json:"fiber_min_g"`
	WaterMinML int            `json:"water_min_ml"`
}

// Profile is the per-user profile document stored in profile.json. The
// free-form sections come from the profile collection conversation; only
// Norms is consumed by this service.
type Profile struct {
	Personal     map[string]any `json:"personal,omitempty"`
	Goals        map[string]any `json:"goals,omitempty"`
	Restrictions []string       `json:"restrictions,omitempty"`
	Preferences  []string       `json:"preferences,omitempty"`
	Medical      []string       `json:"medical,omitempty"`
	Norms        Norms          `json:"norms"`
}
