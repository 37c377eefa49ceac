package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// compiledExpression holds a pre-compiled CEL program for an expression rule.
type compiledExpression struct {
	rule    domain.ExpressionRule
	program cel.Program
}

func newExpressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("description", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("photo_count", cel.IntType),
		cel.Variable("document_count", cel.IntType),
		cel.Variable("has_incident_date", cel.BoolType),
		// days_to_report is -1 when the date is absent or after filing.
		cel.Variable("days_to_report", cel.IntType),
		cel.Variable("running_score", cel.IntType),
	)
}

// ValidateExpression compiles an expression rule without loading it.
func (e *Engine) ValidateExpression(rule domain.ExpressionRule) error {
	_, err := e.compileExpression(rule)
	return err
}

// ExpressionCount returns the number of loaded expression rules.
func (e *Engine) ExpressionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expressions)
}

func (e *Engine) compileExpression(rule domain.ExpressionRule) (*compiledExpression, error) {
	if rule.Flag == "" {
		return nil, fmt.Errorf("expression rule %s: flag is required", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for expression rule %s: %w", rule.ID, err)
	}

	return &compiledExpression{rule: rule, program: program}, nil
}

// applyExpressions runs the configured expression rules in order. A rule that
// fails to evaluate is treated as not matched.
func (e *Engine) applyExpressions(exprs []*compiledExpression, claim *domain.ClaimRecord, score int, flags []string) (int, []string) {
	if len(exprs) == 0 {
		return score, flags
	}

	daysToReport := int64(-1)
	if d := claim.IncidentDetails.IncidentDate; d != nil {
		if days, ok := reportingDelay(claim.CreatedAt, *d); ok {
			daysToReport = int64(days)
		}
	}

	activation := map[string]any{
		"description":       claim.IncidentDetails.Description,
		"location":          claim.IncidentDetails.Location,
		"category":          string(claim.Category),
		"photo_count":       int64(len(claim.Evidence.Photos)),
		"document_count":    int64(len(claim.Evidence.Documents)),
		"has_incident_date": claim.IncidentDetails.IncidentDate != nil,
		"days_to_report":    daysToReport,
	}

	for _, expr := range exprs {
		if !expr.rule.AppliesTo(claim.Category) {
			continue
		}
		activation["running_score"] = int64(score)

		out, _, err := expr.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			score += expr.rule.Score
			flags = append(flags, expr.rule.Flag)
		}
	}
	return score, flags
}
