// Package rules provides the claim fraud scoring engine: additive general
// rules, per-category rule modules and optional CEL expression rules.
package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/claimguard/internal/domain"
)

// Version identifies the rule set reported in claim report metadata.
const Version = "claimguard-rules/1"

// Engine scores claim records. Assess is safe for concurrent use; it holds
// no state between calls other than the registered modules.
type Engine struct {
	mu          sync.RWMutex
	cfg         domain.ScoringConfig
	modules     map[domain.Category]CategoryModule
	env         *cel.Env
	expressions []*compiledExpression
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used by the future-date rule.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine from the scoring configuration, registers the
// built-in motor and health modules and compiles the expression rules.
func NewEngine(cfg domain.ScoringConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env, err := newExpressionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		modules: make(map[domain.Category]CategoryModule),
		env:     env,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.modules[domain.CategoryMotor] = MotorModule(cfg.Motor, cfg.PrefixFlags)
	e.modules[domain.CategoryHealth] = HealthModule(cfg.Health, cfg.PrefixFlags)

	for _, rule := range cfg.ExpressionRules {
		compiled, err := e.compileExpression(rule)
		if err != nil {
			return nil, err
		}
		e.expressions = append(e.expressions, compiled)
	}

	return e, nil
}

// Register attaches a module to a category, replacing any existing one.
// A nil module resets the category to pass-through.
func (e *Engine) Register(category domain.Category, module CategoryModule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if module == nil {
		delete(e.modules, category)
		return
	}
	e.modules[category] = module
}

// Config returns the scoring configuration the engine was built with.
func (e *Engine) Config() domain.ScoringConfig {
	return e.cfg
}

// Assess scores a claim. It never fails: missing fields are scored as risk
// signals. A nil claim is scored as an empty record.
func (e *Engine) Assess(claim *domain.ClaimRecord) domain.FraudAssessment {
	if claim == nil {
		claim = &domain.ClaimRecord{}
	}

	e.mu.RLock()
	module, ok := e.modules[claim.Category]
	exprs := e.expressions
	e.mu.RUnlock()
	if !ok {
		module = Identity
	}

	now := e.now()
	score, flags := e.applyGeneral(claim, now)
	score, flags = module.Apply(claim, score, flags)
	score, flags = e.applyExpressions(exprs, claim, score, flags)

	score = clamp(score)
	if flags == nil {
		flags = []string{}
	}
	return domain.FraudAssessment{
		RiskScore:  score,
		RiskLevel:  e.Classify(score),
		FraudFlags: flags,
	}
}

// Classify maps a clamped score to its tier. Thresholds are inclusive lower bounds.
func (e *Engine) Classify(score int) domain.RiskLevel {
	switch {
	case score >= e.cfg.RedThreshold:
		return domain.RiskRed
	case score >= e.cfg.YellowThreshold:
		return domain.RiskYellow
	default:
		return domain.RiskGreen
	}
}

func clamp(score int) int {
	return max(0, min(score, 100))
}
