package rules

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var filedAt = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, cfg domain.ScoringConfig) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, WithClock(func() time.Time { return filedAt }))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func daysBefore(n int) *time.Time {
	d := time.Date(filedAt.Year(), filedAt.Month(), filedAt.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
	return &d
}

func attachments(names ...string) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Attachment{Name: n, URL: "https://files.example/" + n})
	}
	return out
}

// wellEvidenced returns a claim that triggers no general rule.
func wellEvidenced(category domain.Category) *domain.ClaimRecord {
	return &domain.ClaimRecord{
		ID:       "claim-test",
		Category: category,
		IncidentDetails: domain.IncidentDetails{
			Description:  "Water pipe burst in the upstairs bathroom and soaked the ceiling below overnight",
			IncidentDate: daysBefore(2),
			TimeZone:     "UTC",
			Location:     "12 Harbour Road",
		},
		Evidence: domain.Evidence{
			Photos:    attachments("ceiling.jpg"),
			Documents: attachments("plumber-invoice.pdf"),
		},
		CreatedAt: filedAt,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if engine.ExpressionCount() != 0 {
		t.Errorf("expected 0 expression rules, got %d", engine.ExpressionCount())
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.YellowThreshold = 80

	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error when yellow threshold exceeds red")
	}
}

func TestScenarios(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	t.Run("A minor fender bump is green", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			Category: domain.CategoryMotor,
			IncidentDetails: domain.IncidentDetails{
				Description:  "Minor fender bump in parking lot, no injuries, will attach photos",
				IncidentDate: daysBefore(3),
				Location:     "Mall car park",
			},
			Evidence: domain.Evidence{
				Photos:    attachments("bumper.jpg"),
				Documents: attachments("estimate.pdf"),
			},
			CreatedAt: filedAt,
		}

		got := engine.Assess(claim)
		if got.RiskScore >= 20 {
			t.Errorf("expected score < 20, got %d", got.RiskScore)
		}
		if got.RiskLevel != domain.RiskGreen {
			t.Errorf("expected Green, got %s", got.RiskLevel)
		}
		if len(got.FraudFlags) != 0 {
			t.Errorf("expected no flags, got %v", got.FraudFlags)
		}
	})

	t.Run("B missing everything is red", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			Category: domain.CategoryProperty,
			IncidentDetails: domain.IncidentDetails{
				Description: "Something broke here",
				Location:    "Home",
			},
			CreatedAt: filedAt,
		}

		got := engine.Assess(claim)
		want := []string{FlagMissingDate, FlagMissingPhotos, FlagMissingDocuments, FlagVagueDescription}
		if !slices.Equal(got.FraudFlags, want) {
			t.Errorf("flags = %v, want %v", got.FraudFlags, want)
		}
		if got.RiskScore < 90 || got.RiskScore > 100 {
			t.Errorf("expected clamped score >= 90, got %d", got.RiskScore)
		}
		if got.RiskLevel != domain.RiskRed {
			t.Errorf("expected Red, got %s", got.RiskLevel)
		}
	})

	t.Run("C late report alone is yellow at forty", func(t *testing.T) {
		claim := wellEvidenced(domain.CategoryProperty)
		claim.IncidentDetails.IncidentDate = daysBefore(45)

		got := engine.Assess(claim)
		want := []string{"Claim filed 45 days after the incident."}
		if !slices.Equal(got.FraudFlags, want) {
			t.Errorf("flags = %v, want %v", got.FraudFlags, want)
		}
		if got.RiskScore != 40 {
			t.Errorf("expected score 40, got %d", got.RiskScore)
		}
		if got.RiskLevel != domain.RiskYellow {
			t.Errorf("expected Yellow, got %s", got.RiskLevel)
		}
	})

	t.Run("D future incident is red", func(t *testing.T) {
		claim := wellEvidenced(domain.CategoryLife)
		claim.IncidentDetails.IncidentDate = daysBefore(-1)

		got := engine.Assess(claim)
		if !slices.Contains(got.FraudFlags, FlagFutureDate) {
			t.Errorf("expected future-date flag, got %v", got.FraudFlags)
		}
		if got.RiskScore != 80 {
			t.Errorf("expected score 80, got %d", got.RiskScore)
		}
		if got.RiskLevel != domain.RiskRed {
			t.Errorf("expected Red, got %s", got.RiskLevel)
		}
		for _, f := range got.FraudFlags {
			if strings.HasPrefix(f, "Claim filed") {
				t.Errorf("negative delta must not produce a delay flag, got %q", f)
			}
		}
	})

	t.Run("E motor track day without plate", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			Category: domain.CategoryMotor,
			IncidentDetails: domain.IncidentDetails{
				Description:  "Lost control at the track day on the second lap and hit the barrier",
				IncidentDate: daysBefore(1),
				Location:     "Raceway",
			},
			Evidence: domain.Evidence{
				Photos: attachments("barrier.jpg"),
			},
			CreatedAt: filedAt,
		}

		got := engine.Assess(claim)
		want := []string{FlagMissingDocuments, FlagRiskyActivity, FlagMissingPlate}
		if !slices.Equal(got.FraudFlags, want) {
			t.Errorf("flags = %v, want %v", got.FraudFlags, want)
		}
		if got.RiskScore != 25+40+15 {
			t.Errorf("expected score 80, got %d", got.RiskScore)
		}
	})
}

func TestReportingDelayBands(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	tests := []struct {
		days      int
		wantScore int
		wantFlag  bool
	}{
		{0, 0, false},
		{7, 0, false},
		{8, 15, false},
		{30, 15, false},
		{31, 40, true},
		{365, 40, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d days", tt.days), func(t *testing.T) {
			claim := wellEvidenced(domain.CategoryProperty)
			claim.IncidentDetails.IncidentDate = daysBefore(tt.days)

			got := engine.Assess(claim)
			if got.RiskScore != tt.wantScore {
				t.Errorf("expected score %d, got %d", tt.wantScore, got.RiskScore)
			}
			if hasFlag := len(got.FraudFlags) > 0; hasFlag != tt.wantFlag {
				t.Errorf("expected flag=%v, got %v", tt.wantFlag, got.FraudFlags)
			}
		})
	}
}

func TestFutureDateUsesClock(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	// Filed earlier than the clock, incident between the two.
	claim := wellEvidenced(domain.CategoryProperty)
	claim.CreatedAt = filedAt.AddDate(0, 0, -10)
	future := filedAt.Add(time.Hour)
	claim.IncidentDetails.IncidentDate = &future

	got := engine.Assess(claim)
	if !slices.Equal(got.FraudFlags, []string{FlagFutureDate}) {
		t.Errorf("flags = %v, want only the future-date flag", got.FraudFlags)
	}
}

func TestFutureDateComparesCalendarDays(t *testing.T) {
	// 22:00 UTC on the 14th is already the 15th from UTC+2 eastward.
	now := time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC)
	engine, err := NewEngine(domain.DefaultScoringConfig(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	file := func(t *testing.T, date, zone string) domain.FraudAssessment {
		t.Helper()
		req := domain.ClaimRequest{
			ClaimType:    "property",
			Description:  "Water pipe burst in the upstairs bathroom and soaked the ceiling below overnight",
			IncidentDate: date,
			TimeZone:     zone,
			Location:     "12 Harbour Road",
			Photos:       attachments("ceiling.jpg"),
			Documents:    attachments("plumber-invoice.pdf"),
		}
		claim, err := req.ToClaim(now)
		if err != nil {
			t.Fatalf("ToClaim: %v", err)
		}
		return engine.Assess(claim)
	}

	tests := []struct {
		name       string
		date, zone string
		wantFuture bool
	}{
		{"same day without zone", "2024-06-15", "", false},
		{"same day in Auckland", "2024-06-15", "Pacific/Auckland", false},
		{"same day in Berlin", "2024-06-15", "Europe/Berlin", false},
		{"next day in UTC", "2024-06-15", "UTC", true},
		{"next day in New York", "2024-06-15", "America/New_York", true},
		{"two days ahead without zone", "2024-06-16", "", true},
		{"yesterday without zone", "2024-06-13", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := file(t, tt.date, tt.zone)
			if future := slices.Contains(got.FraudFlags, FlagFutureDate); future != tt.wantFuture {
				t.Errorf("future flag = %v, want %v (flags %v)", future, tt.wantFuture, got.FraudFlags)
			}
			if !tt.wantFuture && (got.RiskScore != 0 || got.RiskLevel != domain.RiskGreen) {
				t.Errorf("expected 0/Green, got %d/%s", got.RiskScore, got.RiskLevel)
			}
		})
	}
}

func TestClassifyBoundaries(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskGreen},
		{39, domain.RiskGreen},
		{40, domain.RiskYellow},
		{74, domain.RiskYellow},
		{75, domain.RiskRed},
		{100, domain.RiskRed},
	}

	for _, tt := range tests {
		if got := engine.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.ExpressionRules = []domain.ExpressionRule{
		{ID: "relief", Expression: "true", Score: -500, Flag: "Trusted channel."},
	}
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected a negative rule score to be rejected")
	}

	cfg.ExpressionRules[0].Score = 500
	engine := newTestEngine(t, cfg)
	got := engine.Assess(wellEvidenced(domain.CategoryProperty))
	if got.RiskScore != 100 {
		t.Errorf("expected score clamped to 100, got %d", got.RiskScore)
	}
}

func TestAssessIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())
	claim := &domain.ClaimRecord{
		Category: domain.CategoryMotor,
		IncidentDetails: domain.IncidentDetails{
			Description:  "stunt jump",
			IncidentDate: daysBefore(40),
		},
		CreatedAt: filedAt,
	}

	first := engine.Assess(claim)
	second := engine.Assess(claim)

	if first.RiskScore != second.RiskScore || first.RiskLevel != second.RiskLevel {
		t.Errorf("repeat assessment differs: %+v vs %+v", first, second)
	}
	if !slices.Equal(first.FraudFlags, second.FraudFlags) {
		t.Errorf("repeat flags differ: %v vs %v", first.FraudFlags, second.FraudFlags)
	}
	if claim.Status != "" || len(claim.Evidence.Photos) != 0 {
		t.Error("assessment mutated the claim")
	}
}

func TestEvidenceMonotonicity(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	for _, category := range domain.Categories {
		t.Run(string(category), func(t *testing.T) {
			bare := &domain.ClaimRecord{
				Category: category,
				IncidentDetails: domain.IncidentDetails{
					Description:  "routine check-up turned into surgery after the race",
					IncidentDate: daysBefore(12),
				},
				CreatedAt: filedAt,
			}
			withPhoto := *bare
			withPhoto.Evidence.Photos = attachments("a.jpg")
			withBoth := withPhoto
			withBoth.Evidence.Documents = attachments("b.pdf")

			s0 := engine.Assess(bare).RiskScore
			s1 := engine.Assess(&withPhoto).RiskScore
			s2 := engine.Assess(&withBoth).RiskScore
			if s1 > s0 || s2 > s1 {
				t.Errorf("adding evidence increased score: %d -> %d -> %d", s0, s1, s2)
			}
		})
	}
}

func TestNilAndEmptyClaims(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	got := engine.Assess(nil)
	if got.RiskLevel != domain.RiskRed {
		t.Errorf("expected empty record to be Red, got %s (%d)", got.RiskLevel, got.RiskScore)
	}
	if got.FraudFlags == nil {
		t.Error("expected non-nil flags")
	}

	got = engine.Assess(wellEvidenced(domain.CategoryProperty))
	if got.FraudFlags == nil || len(got.FraudFlags) != 0 {
		t.Errorf("expected empty non-nil flags, got %#v", got.FraudFlags)
	}
}

func TestDescriptionLengthCountsCharacters(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())

	claim := wellEvidenced(domain.CategoryProperty)
	// 49 multi-byte characters, more than 50 bytes.
	claim.IncidentDetails.Description = strings.Repeat("é", 49)
	if got := engine.Assess(claim); !slices.Equal(got.FraudFlags, []string{FlagVagueDescription}) {
		t.Errorf("expected vague flag for 49 characters, got %v", got.FraudFlags)
	}

	claim.IncidentDetails.Description = strings.Repeat("é", 50)
	if got := engine.Assess(claim); len(got.FraudFlags) != 0 {
		t.Errorf("expected no flag for 50 characters, got %v", got.FraudFlags)
	}
}

func TestPrefixedFlags(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.PrefixFlags = true
	engine := newTestEngine(t, cfg)

	claim := &domain.ClaimRecord{
		Category: domain.CategoryMotor,
		IncidentDetails: domain.IncidentDetails{
			Description: "Stunt gone wrong",
		},
		CreatedAt: filedAt,
	}

	got := engine.Assess(claim)
	want := []string{
		"General: " + FlagMissingDate,
		"General: " + FlagMissingPhotos,
		"General: " + FlagMissingDocuments,
		"General: " + FlagVagueDescription,
		"Motor-Specific: " + FlagRiskyActivity,
		"Motor-Specific: " + FlagMissingPlate,
	}
	if !slices.Equal(got.FraudFlags, want) {
		t.Errorf("flags = %v, want %v", got.FraudFlags, want)
	}
}

func TestConcurrentAssess(t *testing.T) {
	engine := newTestEngine(t, domain.DefaultScoringConfig())
	claim := wellEvidenced(domain.CategoryHealth)
	claim.IncidentDetails.Description = "Routine check-up escalated to emergency room visit and surgery"
	want := engine.Assess(claim)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := engine.Assess(claim); got.RiskScore != want.RiskScore {
				t.Errorf("concurrent score %d, want %d", got.RiskScore, want.RiskScore)
			}
		}()
	}
	wg.Wait()
}
