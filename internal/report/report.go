// Package report assembles claim reports: it runs the fraud engine, derives
// the claim status and asks the explainer to narrate the result.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
	"github.com/opensource-finance/claimguard/internal/rules"
)

var tracer = otel.Tracer("claimguard-report")

// Explainer input placeholders and the inline failure message.
const (
	NoDamageSummary     = "No damage summary available."
	DocumentPlaceholder = "OCR text not implemented in this MVP."
	NoIncidentDate      = "N/A"
	ExplanationFailed   = "Failed to generate fraud explanation."
)

// explanationNamespace is the cache namespace shared by all sessions.
// Keys hash the whole explainer input, so entries are session-independent.
const explanationNamespace = "explanations"

// Builder produces claim reports.
type Builder struct {
	engine    *rules.Engine
	explainer domain.FraudExplainer

	cache    domain.Cache
	cacheTTL time.Duration
}

// Option configures a Builder.
type Option func(*Builder)

// WithExplanationCache caches generated explanations for ttl.
// A nil cache or non-positive ttl disables caching.
func WithExplanationCache(c domain.Cache, ttl time.Duration) Option {
	return func(b *Builder) {
		b.cache = c
		b.cacheTTL = ttl
	}
}

// NewBuilder creates a report builder.
func NewBuilder(engine *rules.Engine, explainer domain.FraudExplainer, opts ...Option) *Builder {
	b := &Builder{engine: engine, explainer: explainer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Input contains everything needed to build one report.
type Input struct {
	SessionID string
	TraceID   string
	Claim     *domain.ClaimRecord
	StartTime time.Time
}

// Assess scores a claim and derives its status. Assessments are never cached.
func (b *Builder) Assess(claim *domain.ClaimRecord) domain.AssessmentResponse {
	assessment := b.engine.Assess(claim)
	metrics.RecordAssessment(string(assessment.RiskLevel))
	resp := domain.AssessmentResponse{
		Status:          rules.DeriveStatus(assessment.RiskLevel),
		FraudAssessment: assessment,
	}
	if claim != nil {
		resp.ClaimID = claim.ID
	}
	return resp
}

// Summary is the dashboard row for a claim.
func (b *Builder) Summary(claim *domain.ClaimRecord) domain.ClaimSummary {
	a := b.Assess(claim)
	return domain.ClaimSummary{
		ID:        claim.ID,
		ClaimType: claim.Category,
		Status:    a.Status,
		RiskScore: a.RiskScore,
		RiskLevel: a.RiskLevel,
		CreatedAt: claim.CreatedAt,
	}
}

// Build assesses the claim and attaches an explanation. An explainer failure
// is reported inline; the assessment is always complete.
func (b *Builder) Build(ctx context.Context, input *Input) *domain.ClaimReport {
	start := input.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	claim := input.Claim

	ctx, span := tracer.Start(ctx, "report.build",
		trace.WithAttributes(
			attribute.String("claim.id", claim.ID),
			attribute.String("claim.category", string(claim.Category)),
		),
	)
	defer span.End()

	traceID := input.TraceID
	if sc := span.SpanContext(); traceID == "" && sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	assessStart := time.Now()
	assessed := b.Assess(claim)
	assessMs := time.Since(assessStart).Milliseconds()
	span.SetAttributes(
		attribute.Int("assessment.score", assessed.RiskScore),
		attribute.String("assessment.level", string(assessed.RiskLevel)),
	)

	report := &domain.ClaimReport{
		ClaimID:         claim.ID,
		ClaimType:       claim.Category,
		Status:          assessed.Status,
		Assessment:      assessed.FraudAssessment,
		DamageAnalysis:  claim.DamageAnalysis,
		IncidentDetails: claim.IncidentDetails,
		CreatedAt:       claim.CreatedAt,
	}

	explainStart := time.Now()
	req := ExplanationInput(claim, assessed.FraudAssessment)
	explanation, cached, err := b.explain(ctx, req)
	if err != nil {
		slog.Warn("fraud explanation failed",
			"claim_id", claim.ID,
			"session_id", input.SessionID,
			"risk_level", assessed.RiskLevel,
			"error", err,
		)
		span.RecordError(err)
		report.Explanation = ExplanationFailed
		report.ExplanationError = true
	} else {
		report.Explanation = explanation
	}

	report.Metadata = domain.ReportMetadata{
		TraceID:           traceID,
		AssessMs:          assessMs,
		ExplainMs:         time.Since(explainStart).Milliseconds(),
		TotalMs:           time.Since(start).Milliseconds(),
		ExplanationCached: cached,
		EngineVersion:     rules.Version,
	}
	return report
}

// ExplanationInput builds the explainer request for a claim and its assessment.
func ExplanationInput(claim *domain.ClaimRecord, a domain.FraudAssessment) domain.ExplanationRequest {
	damage := NoDamageSummary
	if claim.DamageAnalysis != nil && claim.DamageAnalysis.DamageSummary != "" {
		damage = claim.DamageAnalysis.DamageSummary
	}
	incident := NoIncidentDate
	if d := claim.IncidentDetails.IncidentDate; d != nil {
		incident = d.Format(time.DateOnly)
	}
	flags := a.FraudFlags
	if flags == nil {
		flags = []string{}
	}
	return domain.ExplanationRequest{
		RiskLevel:     a.RiskLevel,
		FraudFlags:    flags,
		DamageSummary: damage,
		DocumentText:  DocumentPlaceholder,
		IncidentDate:  incident,
		ClaimDate:     claim.CreatedAt.Format(time.DateOnly),
		Location:      claim.IncidentDetails.Location,
	}
}

func (b *Builder) explain(ctx context.Context, req domain.ExplanationRequest) (string, bool, error) {
	if b.explainer == nil {
		return "", false, domain.ErrCollaboratorUnavailable
	}

	key, cacheable := b.cacheKey(req)
	if cacheable {
		if text, ok := b.cached(ctx, key); ok {
			metrics.RecordCollaboratorCall("fraud_explanation", metrics.OutcomeCached, 0)
			return text, true, nil
		}
	}

	out, err := b.explainer.Explain(ctx, req)
	if err != nil {
		return "", false, err
	}

	if cacheable {
		if data, err := json.Marshal(out); err == nil {
			if err := b.cache.Set(ctx, explanationNamespace, key, data, b.cacheTTL); err != nil {
				slog.Debug("explanation cache write failed", "error", err)
			}
		}
	}
	return out.Explanation, false, nil
}

func (b *Builder) cached(ctx context.Context, key string) (string, bool) {
	data, err := b.cache.Get(ctx, explanationNamespace, key)
	if err != nil {
		slog.Debug("explanation cache read failed", "error", err)
		return "", false
	}
	if data == nil {
		return "", false
	}
	var out domain.Explanation
	if err := json.Unmarshal(data, &out); err != nil || out.Explanation == "" {
		return "", false
	}
	return out.Explanation, true
}

// cacheKey hashes the full explainer input, so a hit always narrates the
// same level and flags.
func (b *Builder) cacheKey(req domain.ExplanationRequest) (string, bool) {
	if b.cache == nil || b.cacheTTL <= 0 {
		return "", false
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), true
}
