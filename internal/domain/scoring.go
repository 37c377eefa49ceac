package domain

import (
	"fmt"
	"slices"
)

// ScoringConfig holds every delta, band, keyword list and threshold used by
// the fraud rule engine. DefaultScoringConfig reproduces the stock rules.
type ScoringConfig struct {
	// Reporting delay bands, in whole days between incident and filing.
	LongDelayDays      int `json:"longDelayDays" yaml:"long_delay_days"`
	LongDelayScore     int `json:"longDelayScore" yaml:"long_delay_score"`
	ModerateDelayDays  int `json:"moderateDelayDays" yaml:"moderate_delay_days"`
	ModerateDelayScore int `json:"moderateDelayScore" yaml:"moderate_delay_score"`

	MissingDateScore      int `json:"missingDateScore" yaml:"missing_date_score"`
	FutureDateScore       int `json:"futureDateScore" yaml:"future_date_score"`
	MissingPhotosScore    int `json:"missingPhotosScore" yaml:"missing_photos_score"`
	MissingDocumentsScore int `json:"missingDocumentsScore" yaml:"missing_documents_score"`

	// Descriptions shorter than MinDescriptionLength characters are vague.
	MinDescriptionLength  int `json:"minDescriptionLength" yaml:"min_description_length"`
	VagueDescriptionScore int `json:"vagueDescriptionScore" yaml:"vague_description_score"`

	Motor  MotorRules  `json:"motor" yaml:"motor"`
	Health HealthRules `json:"health" yaml:"health"`

	// Tier thresholds are inclusive lower bounds.
	RedThreshold    int `json:"redThreshold" yaml:"red_threshold"`
	YellowThreshold int `json:"yellowThreshold" yaml:"yellow_threshold"`

	// PrefixFlags labels flags with their rule group ("General: ...").
	PrefixFlags bool `json:"prefixFlags" yaml:"prefix_flags"`

	// ExpressionRules are extra CEL rules run after the category module.
	ExpressionRules []ExpressionRule `json:"expressionRules,omitempty" yaml:"expression_rules"`
}

// MotorRules configures the motor insurance module.
type MotorRules struct {
	RiskyKeywords      []string `json:"riskyKeywords" yaml:"risky_keywords"`
	RiskyActivityScore int      `json:"riskyActivityScore" yaml:"risky_activity_score"`
	PlateKeywords      []string `json:"plateKeywords" yaml:"plate_keywords"`
	MissingPlateScore  int      `json:"missingPlateScore" yaml:"missing_plate_score"`
}

// HealthRules configures the health insurance module.
type HealthRules struct {
	MinorKeywords     []string `json:"minorKeywords" yaml:"minor_keywords"`
	ExpensiveKeywords []string `json:"expensiveKeywords" yaml:"expensive_keywords"`
	MismatchScore     int      `json:"mismatchScore" yaml:"mismatch_score"`
}

// ExpressionRule is a configurable rule written in CEL.
// Expression must evaluate to a bool; when true, Score is added and Flag emitted.
type ExpressionRule struct {
	ID         string     `json:"id" yaml:"id"`
	Categories []Category `json:"categories,omitempty" yaml:"categories"`
	Expression string     `json:"expression" yaml:"expression"`
	Score      int        `json:"score" yaml:"score"`
	Flag       string     `json:"flag" yaml:"flag"`
}

// AppliesTo reports whether the rule runs for the given category.
// An empty category list matches every category.
func (r ExpressionRule) AppliesTo(c Category) bool {
	return len(r.Categories) == 0 || slices.Contains(r.Categories, c)
}

// DefaultScoringConfig returns the stock scoring rules.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		LongDelayDays:         30,
		LongDelayScore:        40,
		ModerateDelayDays:     7,
		ModerateDelayScore:    15,
		MissingDateScore:      25,
		FutureDateScore:       80,
		MissingPhotosScore:    50,
		MissingDocumentsScore: 25,
		MinDescriptionLength:  50,
		VagueDescriptionScore: 10,
		Motor: MotorRules{
			RiskyKeywords:      []string{"race", "track", "off-road competition", "stunt"},
			RiskyActivityScore: 40,
			PlateKeywords:      []string{"plate number"},
			MissingPlateScore:  15,
		},
		Health: HealthRules{
			MinorKeywords:     []string{"check-up", "routine", "minor pain"},
			ExpensiveKeywords: []string{"surgery", "emergency room", "intensive care"},
			MismatchScore:     50,
		},
		RedThreshold:    75,
		YellowThreshold: 40,
	}
}

// Validate checks the bands and thresholds are consistent.
func (c ScoringConfig) Validate() error {
	if c.ModerateDelayDays < 0 || c.LongDelayDays < c.ModerateDelayDays {
		return fmt.Errorf("%w: delay bands must satisfy 0 <= moderate (%d) <= long (%d)",
			ErrInvalidInput, c.ModerateDelayDays, c.LongDelayDays)
	}
	if c.YellowThreshold <= 0 || c.RedThreshold <= c.YellowThreshold || c.RedThreshold > 100 {
		return fmt.Errorf("%w: thresholds must satisfy 0 < yellow (%d) < red (%d) <= 100",
			ErrInvalidInput, c.YellowThreshold, c.RedThreshold)
	}
	if c.MinDescriptionLength < 0 {
		return fmt.Errorf("%w: min description length must not be negative", ErrInvalidInput)
	}
	// Rules only ever add risk; evidence can never lower a score.
	deltas := []struct {
		name  string
		score int
	}{
		{"long delay", c.LongDelayScore},
		{"moderate delay", c.ModerateDelayScore},
		{"missing date", c.MissingDateScore},
		{"future date", c.FutureDateScore},
		{"missing photos", c.MissingPhotosScore},
		{"missing documents", c.MissingDocumentsScore},
		{"vague description", c.VagueDescriptionScore},
		{"motor risky activity", c.Motor.RiskyActivityScore},
		{"motor missing plate", c.Motor.MissingPlateScore},
		{"health mismatch", c.Health.MismatchScore},
	}
	for _, d := range deltas {
		if d.score < 0 {
			return fmt.Errorf("%w: %s score must not be negative (%d)", ErrInvalidInput, d.name, d.score)
		}
	}
	seen := make(map[string]bool, len(c.ExpressionRules))
	for i, r := range c.ExpressionRules {
		if r.ID == "" {
			return fmt.Errorf("%w: expression rule %d has no id", ErrInvalidInput, i)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate expression rule id %q", ErrInvalidInput, r.ID)
		}
		seen[r.ID] = true
		if r.Expression == "" {
			return fmt.Errorf("%w: expression rule %q has no expression", ErrInvalidInput, r.ID)
		}
		if r.Score < 0 {
			return fmt.Errorf("%w: expression rule %q has negative score %d", ErrInvalidInput, r.ID, r.Score)
		}
		for _, cat := range r.Categories {
			if !cat.Valid() {
				return fmt.Errorf("%w: expression rule %q names unknown category %q", ErrInvalidInput, r.ID, cat)
			}
		}
	}
	return nil
}
