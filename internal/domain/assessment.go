package domain

import "time"

// RiskLevel is the coarse fraud tier.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "Green"
	RiskYellow RiskLevel = "Yellow"
	RiskRed    RiskLevel = "Red"
)

// FraudAssessment is the engine's sole output. It is computed fresh on every
// call; RiskLevel is always derived from RiskScore.
type FraudAssessment struct {
	RiskScore  int       `json:"riskScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	FraudFlags []string  `json:"fraudFlags"`
}

// AssessmentResponse is the API view of an assessment with its derived status.
type AssessmentResponse struct {
	ClaimID string      `json:"claimId"`
	Status  ClaimStatus `json:"status"`
	FraudAssessment
}

// ClaimReport is the assembled claim detail view.
type ClaimReport struct {
	ClaimID          string          `json:"claimId"`
	ClaimType        Category        `json:"claimType"`
	Status           ClaimStatus     `json:"status"`
	Assessment       FraudAssessment `json:"assessment"`
	Explanation      string          `json:"explanation"`
	ExplanationError bool            `json:"explanationError,omitempty"`
	DamageAnalysis   *DamageAnalysis `json:"damageAnalysis,omitempty"`
	IncidentDetails  IncidentDetails `json:"incidentDetails"`
	CreatedAt        time.Time       `json:"createdAt"`
	Metadata         ReportMetadata  `json:"metadata"`
}

// ReportMetadata carries processing information for a report.
type ReportMetadata struct {
	TraceID           string `json:"traceId,omitempty"`
	AssessMs          int64  `json:"assessMs"`
	ExplainMs         int64  `json:"explainMs"`
	TotalMs           int64  `json:"totalMs"`
	ExplanationCached bool   `json:"explanationCached,omitempty"`
	EngineVersion     string `json:"engineVersion"`
}
