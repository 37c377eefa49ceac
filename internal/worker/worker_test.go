package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/bus"
	"github.com/opensource-finance/claimguard/internal/cache"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/report"
	"github.com/opensource-finance/claimguard/internal/rules"
)

type countingExplainer struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExplainer) Explain(context.Context, domain.ExplanationRequest) (*domain.Explanation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return &domain.Explanation{Explanation: "narrated"}, nil
}

func (e *countingExplainer) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// blockingExplainer holds every call until release is closed and records
// whether the call's context was still live when it finished.
type blockingExplainer struct {
	entered chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func newBlockingExplainer() *blockingExplainer {
	return &blockingExplainer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (e *blockingExplainer) Explain(ctx context.Context, _ domain.ExplanationRequest) (*domain.Explanation, error) {
	e.entered <- struct{}{}
	<-e.release
	e.ctxErr <- ctx.Err()
	return &domain.Explanation{Explanation: "narrated"}, nil
}

type fixture struct {
	bus       *bus.ChannelBus
	store     *cache.ClaimStore
	builder   *report.Builder
	explainer *countingExplainer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	lru := cache.NewLRUCache(1000)
	store, err := cache.NewClaimStore(lru, time.Hour)
	if err != nil {
		t.Fatalf("NewClaimStore: %v", err)
	}

	engine, err := rules.NewEngine(domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	explainer := &countingExplainer{}
	builder := report.NewBuilder(engine, explainer, report.WithExplanationCache(lru, time.Hour))

	return &fixture{bus: eventBus, store: store, builder: builder, explainer: explainer}
}

// collect subscribes to topic and returns a channel of decoded events.
func (f *fixture) collect(t *testing.T, topic string) <-chan domain.ClaimEvent {
	t.Helper()
	out := make(chan domain.ClaimEvent, 10)
	_, err := f.bus.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		var ev domain.ClaimEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		out <- ev
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe %s: %v", topic, err)
	}
	return out
}

func (f *fixture) submit(t *testing.T, sessionID string, claim *domain.ClaimRecord) {
	t.Helper()
	if err := f.store.SaveClaim(context.Background(), sessionID, claim); err != nil {
		t.Fatalf("SaveClaim: %v", err)
	}
	payload, _ := json.Marshal(domain.ClaimEvent{SessionID: sessionID, ClaimID: claim.ID, TraceID: "trace-" + claim.ID})
	if err := f.bus.Publish(context.Background(), domain.TopicClaimSubmitted, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func wait[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v := <-ch:
		return v, true
	case <-time.After(2 * time.Second):
		var zero T
		return zero, false
	}
}

func redClaim(id string) *domain.ClaimRecord {
	return &domain.ClaimRecord{
		ID:       id,
		Category: domain.CategoryMotor,
		IncidentDetails: domain.IncidentDetails{
			Description: "Street race crash",
			Location:    "Track road",
		},
		Evidence:  domain.Evidence{Photos: []domain.Attachment{}, Documents: []domain.Attachment{}},
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func greenClaim(id string) *domain.ClaimRecord {
	now := time.Now().UTC()
	incident := now.Add(-24 * time.Hour)
	return &domain.ClaimRecord{
		ID:       id,
		Category: domain.CategoryLife,
		IncidentDetails: domain.IncidentDetails{
			Description:  "Policy holder passed away at home; death certificate and hospital records attached.",
			IncidentDate: &incident,
			Location:     "Springfield",
		},
		Evidence: domain.Evidence{
			Photos:    []domain.Attachment{{Name: "cert.jpg", URL: "blob:1"}},
			Documents: []domain.Attachment{{Name: "records.pdf", URL: "blob:2"}},
		},
		Status:    domain.StatusPending,
		CreatedAt: now,
	}
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.bus, f.store, f.builder)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	stats := w.GetStats()
	if stats.SubscriptionCount != 1 || stats.Topics[0] != domain.TopicClaimSubmitted {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if f.bus.SubscriberCount(domain.TopicClaimSubmitted) != 1 {
		t.Error("expected a subscriber on the submitted topic")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if w.GetStats().SubscriptionCount != 0 {
		t.Error("expected 0 subscriptions after stop")
	}
	if f.bus.SubscriberCount(domain.TopicClaimSubmitted) != 0 {
		t.Error("expected the bus subscription to be removed")
	}
}

func TestProcessClaim(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.bus, f.store, f.builder)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	assessed := f.collect(t, domain.TopicClaimAssessed)
	flagged := f.collect(t, domain.TopicClaimFlagged)

	t.Run("GreenClaim", func(t *testing.T) {
		f.submit(t, "session-1", greenClaim("claim-green"))

		ev, ok := wait(t, assessed)
		if !ok {
			t.Fatal("expected an assessed event")
		}
		if ev.ClaimID != "claim-green" || ev.SessionID != "session-1" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.RiskLevel != domain.RiskGreen || ev.Status != domain.StatusApproved {
			t.Errorf("expected Green/Approved, got %s/%s", ev.RiskLevel, ev.Status)
		}
		if ev.TraceID != "trace-claim-green" {
			t.Errorf("trace id = %q", ev.TraceID)
		}
		select {
		case got := <-flagged:
			t.Errorf("green claim must not be flagged: %+v", got)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("RedClaimIsFlagged", func(t *testing.T) {
		f.submit(t, "session-1", redClaim("claim-red"))

		ev, ok := wait(t, assessed)
		if !ok {
			t.Fatal("expected an assessed event")
		}
		if ev.RiskLevel != domain.RiskRed || ev.Status != domain.StatusRejected {
			t.Errorf("expected Red/Rejected, got %s/%s", ev.RiskLevel, ev.Status)
		}
		fl, ok := wait(t, flagged)
		if !ok {
			t.Fatal("expected a flagged event")
		}
		if fl.ClaimID != "claim-red" || fl.RiskScore != 100 {
			t.Errorf("unexpected flagged event: %+v", fl)
		}
	})

	t.Run("WarmsExplanationCache", func(t *testing.T) {
		before := f.explainer.Calls()
		claim, err := f.store.GetClaim(context.Background(), "session-1", "claim-red")
		if err != nil {
			t.Fatalf("GetClaim: %v", err)
		}
		rep := f.builder.Build(context.Background(), &report.Input{SessionID: "session-1", Claim: claim})
		if !rep.Metadata.ExplanationCached {
			t.Error("expected the worker to have cached the explanation")
		}
		if f.explainer.Calls() != before {
			t.Errorf("explainer called again: %d -> %d", before, f.explainer.Calls())
		}
	})

	t.Run("MissingClaimIsSkipped", func(t *testing.T) {
		payload, _ := json.Marshal(domain.ClaimEvent{SessionID: "session-1", ClaimID: "claim-gone"})
		if err := f.bus.Publish(context.Background(), domain.TopicClaimSubmitted, payload); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case ev := <-assessed:
			t.Errorf("unexpected event for missing claim: %+v", ev)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestProcessClaimBadPayload(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.bus, f.store, f.builder)

	err := w.processClaim(context.Background(), &domain.Message{ID: "m1", Payload: []byte("{not json")})
	if err == nil {
		t.Error("expected a parse error")
	}
}

func TestStopDrainsInFlightClaims(t *testing.T) {
	f := newFixture(t)
	engine, err := rules.NewEngine(domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	explainer := newBlockingExplainer()
	w := NewWorker(f.bus, f.store, report.NewBuilder(engine, explainer))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	assessed := f.collect(t, domain.TopicClaimAssessed)
	f.submit(t, "session-1", redClaim("claim-slow"))

	if _, ok := wait(t, explainer.entered); !ok {
		t.Fatal("explainer was never called")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a claim was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(explainer.release)

	if err, ok := wait(t, stopped); !ok {
		t.Fatal("Stop did not return after the claim finished")
	} else if err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if ctxErr, ok := wait(t, explainer.ctxErr); !ok || ctxErr != nil {
		t.Errorf("in-flight explanation context was cancelled: %v", ctxErr)
	}
	ev, ok := wait(t, assessed)
	if !ok {
		t.Fatal("expected the drained claim to be published")
	}
	if ev.ClaimID != "claim-slow" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestStoppedWorkerIgnoresLateMessages(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.bus, f.store, f.builder)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	err := w.handleMessage(context.Background(), &domain.Message{ID: "late", Payload: []byte("{not json")})
	if err != nil {
		t.Errorf("late message should be dropped, got %v", err)
	}
}
