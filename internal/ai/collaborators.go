package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
)

// Collaborator names used in metrics.
const (
	nameDamage      = "damage_summary"
	nameExplanation = "fraud_explanation"
	nameGuidance    = "guidance_chat"
	nameStatus      = "status_chat"
	nameTranscribe  = "transcription"
)

// statusFallback is returned when the status bot produced nothing usable.
const statusFallback = "I'm sorry, I wasn't able to process that request. Please try again."

func observe(name string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		outcome = metrics.OutcomeUnavailable
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.RecordCollaboratorCall(name, outcome, time.Since(start))
}

// Summarize analyses the claim photos.
func (c *Client) Summarize(ctx context.Context, req domain.DamageRequest) (_ *domain.DamageAnalysis, err error) {
	if len(req.Images) == 0 {
		return nil, domain.ErrNoImages
	}
	start := time.Now()
	defer func() { observe(nameDamage, start, err) }()

	parts := make([]part, 0, 2+2*len(req.Images))
	parts = append(parts, textPart(damageInstructions))
	if desc := strings.TrimSpace(req.Context); desc != "" {
		parts = append(parts, textPart("\nIncident Description: "+desc+"\n"))
	} else {
		parts = append(parts, textPart("\nNo additional incident description provided.\n"))
	}
	for i, img := range req.Images {
		parts = append(parts, textPart(fmt.Sprintf("\nPhoto %d for analysis:", i+1)), mediaPart(img))
	}

	var out domain.DamageAnalysis
	if err = c.generate(ctx, "damage_summary", c.visionModel, parts, permissiveSafety, &out); err != nil {
		return nil, err
	}
	out.DamageSummary = c.clean(out.DamageSummary)
	out.AffectedParts = c.cleanAll(out.AffectedParts)
	return NormalizeDamage(&out), nil
}

// NormalizeDamage applies the no-damage convention and coerces an unknown
// severity to Undetermined.
func NormalizeDamage(d *domain.DamageAnalysis) *domain.DamageAnalysis {
	summary := strings.TrimSpace(d.DamageSummary)
	if summary == "" || strings.EqualFold(summary, domain.NoVisibleDamage) {
		return &domain.DamageAnalysis{
			DamageSummary:     domain.NoVisibleDamage,
			EstimatedSeverity: domain.SeverityMinor,
			AffectedParts:     []string{},
		}
	}
	out := &domain.DamageAnalysis{
		DamageSummary:     summary,
		EstimatedSeverity: domain.SeverityUndetermined,
		AffectedParts:     d.AffectedParts,
	}
	for _, s := range []domain.Severity{
		domain.SeverityMinor, domain.SeverityModerate, domain.SeveritySevere,
		domain.SeverityTotaled, domain.SeverityUndetermined,
	} {
		if strings.EqualFold(string(d.EstimatedSeverity), string(s)) {
			out.EstimatedSeverity = s
			break
		}
	}
	if out.AffectedParts == nil {
		out.AffectedParts = []string{}
	}
	return out
}

// Explain narrates an assessment. Level and flags are passed through as given.
func (c *Client) Explain(ctx context.Context, req domain.ExplanationRequest) (_ *domain.Explanation, err error) {
	start := time.Now()
	defer func() { observe(nameExplanation, start, err) }()

	prompt, err := render(explanationTmpl, req)
	if err != nil {
		return nil, fmt.Errorf("render explanation prompt: %w", err)
	}
	var out domain.Explanation
	if err = c.generate(ctx, "fraud_explanation", c.model, []part{textPart(prompt)}, nil, &out); err != nil {
		return nil, err
	}
	out.Explanation = c.clean(out.Explanation)
	if out.Explanation == "" {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

// Guide answers the claimant during filing.
func (c *Client) Guide(ctx context.Context, req domain.ChatRequest) (_ *domain.ChatResponse, err error) {
	start := time.Now()
	defer func() { observe(nameGuidance, start, err) }()

	prompt, err := render(guidanceTmpl, req)
	if err != nil {
		return nil, fmt.Errorf("render guidance prompt: %w", err)
	}
	var out domain.ChatResponse
	if err = c.generate(ctx, "guidance_chat", c.model, []part{textPart(prompt)}, nil, &out); err != nil {
		return nil, err
	}
	out.Response = c.clean(out.Response)
	if out.Response == "" {
		return nil, ErrEmptyResponse
	}
	out.SuggestedEvidence = c.cleanAll(out.SuggestedEvidence)
	return &out, nil
}

// StatusUpdate answers a question about an existing claim.
func (c *Client) StatusUpdate(ctx context.Context, req domain.StatusChatRequest) (_ *domain.ChatResponse, err error) {
	start := time.Now()
	defer func() { observe(nameStatus, start, err) }()

	prompt, err := render(statusTmpl, req)
	if err != nil {
		return nil, fmt.Errorf("render status prompt: %w", err)
	}
	var out domain.ChatResponse
	if err = c.generate(ctx, "status_chat", c.model, []part{textPart(prompt)}, nil, &out); err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return &domain.ChatResponse{Response: statusFallback}, nil
		}
		return nil, err
	}
	resp := &domain.ChatResponse{Response: c.clean(out.Response)}
	if resp.Response == "" {
		resp.Response = statusFallback
	}
	return resp, nil
}

// Transcribe converts recorded audio to text.
func (c *Client) Transcribe(ctx context.Context, audio domain.Media) (_ *domain.Transcript, err error) {
	if len(audio.Data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", domain.ErrInvalidInput)
	}
	start := time.Now()
	defer func() { observe(nameTranscribe, start, err) }()

	var out domain.Transcript
	parts := []part{textPart(transcribeInstructions), mediaPart(audio)}
	if err = c.generate(ctx, "transcription", c.visionModel, parts, nil, &out); err != nil {
		return nil, err
	}
	out.Transcript = c.clean(out.Transcript)
	return &out, nil
}
