package rules

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// CategoryModule adds category-specific rules on top of the general score.
// Apply receives the running score and flags and returns the updated pair;
// modules must append to flags, never reorder them.
type CategoryModule interface {
	Apply(claim *domain.ClaimRecord, score int, flags []string) (int, []string)
}

// ModuleFunc adapts a function to CategoryModule.
type ModuleFunc func(claim *domain.ClaimRecord, score int, flags []string) (int, []string)

// Apply calls f.
func (f ModuleFunc) Apply(claim *domain.ClaimRecord, score int, flags []string) (int, []string) {
	return f(claim, score, flags)
}

// Identity is the pass-through module used for categories without specific rules.
var Identity CategoryModule = ModuleFunc(func(_ *domain.ClaimRecord, score int, flags []string) (int, []string) {
	return score, flags
})

// Motor and health flags.
const (
	FlagRiskyActivity     = "Description contains keywords related to non-covered activities (e.g., racing)."
	FlagMissingPlate      = "Vehicle license plate information appears to be missing from documents and description."
	FlagTreatmentMismatch = "Description mentions both minor issues and high-cost procedures, which is unusual."
	motorPrefix           = "Motor-Specific: "
	healthPrefix          = "Health-Specific: "
)

// MotorModule flags non-covered risky activities and missing vehicle identification.
func MotorModule(cfg domain.MotorRules, prefix bool) CategoryModule {
	risky := foldAll(cfg.RiskyKeywords)
	plate := foldAll(cfg.PlateKeywords)
	return ModuleFunc(func(claim *domain.ClaimRecord, score int, flags []string) (int, []string) {
		desc := fold(claim.IncidentDetails.Description)
		if containsAny(desc, risky) {
			score += cfg.RiskyActivityScore
			flags = append(flags, label(prefix, motorPrefix, FlagRiskyActivity))
		}
		if len(claim.Evidence.Documents) == 0 && !containsAny(desc, plate) {
			score += cfg.MissingPlateScore
			flags = append(flags, label(prefix, motorPrefix, FlagMissingPlate))
		}
		return score, flags
	})
}

// HealthModule flags descriptions that pair minor complaints with high-cost care.
func HealthModule(cfg domain.HealthRules, prefix bool) CategoryModule {
	minor := foldAll(cfg.MinorKeywords)
	expensive := foldAll(cfg.ExpensiveKeywords)
	return ModuleFunc(func(claim *domain.ClaimRecord, score int, flags []string) (int, []string) {
		desc := fold(claim.IncidentDetails.Description)
		if containsAny(desc, minor) && containsAny(desc, expensive) {
			score += cfg.MismatchScore
			flags = append(flags, label(prefix, healthPrefix, FlagTreatmentMismatch))
		}
		return score, flags
	})
}

func label(enabled bool, prefix, flag string) string {
	if enabled {
		return prefix + flag
	}
	return flag
}

// fold lowercases s for keyword matching. A Caser is not safe for
// concurrent use, so one is created per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = fold(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
