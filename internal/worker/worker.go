// Package worker assesses submitted claims in the background.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/report"
)

// Worker consumes claim submissions from the EventBus, builds each claim's
// report (warming the explanation cache) and publishes the outcome.
type Worker struct {
	bus     domain.EventBus
	store   domain.ClaimStore
	builder *report.Builder

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, store domain.ClaimStore, builder *report.Builder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		store:   store,
		builder: builder,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to claim submissions.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimSubmitted, w.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicClaimSubmitted, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("claim worker started", "topic", domain.TopicClaimSubmitted)
	return nil
}

// handleMessage registers the message as in flight before processing it.
// Processing is detached from the subscription context so Stop drains
// in-flight claims instead of aborting their explainer calls.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	return w.processClaim(context.WithoutCancel(ctx), msg)
}

// processClaim assesses one submitted claim.
func (w *Worker) processClaim(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.ClaimEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse claim event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := event.TraceID
	if traceID == "" {
		traceID = msg.Metadata["trace_id"]
	}
	if traceID == "" {
		traceID = msg.ID
	}

	claim, err := w.store.GetClaim(ctx, event.SessionID, event.ClaimID)
	if errors.Is(err, domain.ErrClaimNotFound) {
		// Deleted or expired before we got to it.
		slog.Debug("submitted claim no longer stored",
			"claim_id", event.ClaimID,
			"session_id", event.SessionID,
		)
		return nil
	}
	if err != nil {
		slog.Error("failed to load claim",
			"claim_id", event.ClaimID,
			"session_id", event.SessionID,
			"error", err,
		)
		return err
	}

	rep := w.builder.Build(ctx, &report.Input{
		SessionID: event.SessionID,
		TraceID:   traceID,
		Claim:     claim,
		StartTime: start,
	})

	result := domain.ClaimEvent{
		SessionID: event.SessionID,
		ClaimID:   claim.ID,
		TraceID:   traceID,
		Category:  claim.Category,
		RiskScore: rep.Assessment.RiskScore,
		RiskLevel: rep.Assessment.RiskLevel,
		Status:    rep.Status,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	if err := w.bus.Publish(ctx, domain.TopicClaimAssessed, payload); err != nil {
		slog.Error("failed to publish assessment",
			"claim_id", claim.ID,
			"error", err,
		)
	}

	if rep.Assessment.RiskLevel == domain.RiskRed {
		if err := w.bus.Publish(ctx, domain.TopicClaimFlagged, payload); err != nil {
			slog.Error("failed to publish flagged claim",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	slog.Info("claim assessed",
		"claim_id", claim.ID,
		"session_id", event.SessionID,
		"risk_level", rep.Assessment.RiskLevel,
		"risk_score", rep.Assessment.RiskScore,
		"explanation_cached", rep.Metadata.ExplanationCached,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop unsubscribes and waits for in-flight claims to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()

	slog.Info("claim worker stopped")
	return nil
}

// Stats describes the worker's subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
