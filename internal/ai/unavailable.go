package ai

import (
	"context"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Unavailable is the backend used when no model is configured.
// Every call fails with domain.ErrCollaboratorUnavailable.
type Unavailable struct{}

func (Unavailable) fail(name string) error {
	observe(name, time.Now(), domain.ErrCollaboratorUnavailable)
	return domain.ErrCollaboratorUnavailable
}

func (u Unavailable) Summarize(_ context.Context, req domain.DamageRequest) (*domain.DamageAnalysis, error) {
	if len(req.Images) == 0 {
		return nil, domain.ErrNoImages
	}
	return nil, u.fail(nameDamage)
}

func (u Unavailable) Explain(context.Context, domain.ExplanationRequest) (*domain.Explanation, error) {
	return nil, u.fail(nameExplanation)
}

func (u Unavailable) Guide(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return nil, u.fail(nameGuidance)
}

func (u Unavailable) StatusUpdate(context.Context, domain.StatusChatRequest) (*domain.ChatResponse, error) {
	return nil, u.fail(nameStatus)
}

func (u Unavailable) Transcribe(context.Context, domain.Media) (*domain.Transcript, error) {
	return nil, u.fail(nameTranscribe)
}
