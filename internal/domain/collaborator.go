package domain

import "context"

// Severity is the collaborator's overall damage estimate.
type Severity string

const (
	SeverityMinor        Severity = "Minor"
	SeverityModerate     Severity = "Moderate"
	SeveritySevere       Severity = "Severe"
	SeverityTotaled      Severity = "Totaled"
	SeverityUndetermined Severity = "Undetermined"
)

// NoVisibleDamage is the summary a damage analysis carries when nothing was found.
const NoVisibleDamage = "No visible damage detected."

// DamageAnalysis is produced by the damage summarizer and stored with the claim.
// The fraud engine ignores it; its summary is forwarded to the explainer.
type DamageAnalysis struct {
	DamageSummary     string   `json:"damageSummary"`
	EstimatedSeverity Severity `json:"estimatedSeverity"`
	AffectedParts     []string `json:"affectedParts"`
}

// Media is an uploaded binary payload (photo or audio).
type Media struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// ChatMessage is one conversation turn. Role is "user" or "model".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// DamageRequest is the damage summarizer input.
type DamageRequest struct {
	Images  []Media
	Context string
}

// ExplanationRequest is the fraud explainer input. RiskLevel and FraudFlags
// are passed through verbatim from the engine.
type ExplanationRequest struct {
	RiskLevel     RiskLevel `json:"riskLevel"`
	FraudFlags    []string  `json:"fraudFlags"`
	DamageSummary string    `json:"damageSummary"`
	DocumentText  string    `json:"ocrText"`
	IncidentDate  string    `json:"incidentDate"`
	ClaimDate     string    `json:"claimDate"`
	Location      string    `json:"location"`
}

// Explanation is the fraud explainer output.
type Explanation struct {
	Explanation string `json:"explanation"`
}

// ChatRequest is the guidance chatbot input.
type ChatRequest struct {
	History []ChatMessage `json:"conversationHistory"`
	Message string        `json:"userMessage"`
}

// ClaimContext is what the status bot may know about the claim being discussed.
type ClaimContext struct {
	Status      ClaimStatus `json:"status"`
	Description string      `json:"description"`
}

// StatusChatRequest is the status chatbot input. Claim is nil when the
// lookup key matched nothing.
type StatusChatRequest struct {
	ClaimID string        `json:"claimId"`
	Claim   *ClaimContext `json:"-"`
	History []ChatMessage `json:"conversationHistory"`
	Message string        `json:"userMessage"`
}

// ChatResponse is returned by both chatbots.
type ChatResponse struct {
	Response          string   `json:"response"`
	SuggestedEvidence []string `json:"suggestedEvidence,omitempty"`
}

// Transcript is the audio transcriber output.
type Transcript struct {
	Transcript string `json:"transcript"`
}

// DamageSummarizer analyses claim photos.
type DamageSummarizer interface {
	Summarize(ctx context.Context, req DamageRequest) (*DamageAnalysis, error)
}

// FraudExplainer narrates a fraud assessment.
type FraudExplainer interface {
	Explain(ctx context.Context, req ExplanationRequest) (*Explanation, error)
}

// GuidanceBot coaches a claimant through filing.
type GuidanceBot interface {
	Guide(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StatusBot answers questions about an existing claim.
type StatusBot interface {
	StatusUpdate(ctx context.Context, req StatusChatRequest) (*ChatResponse, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Media) (*Transcript, error)
}

// Collaborators groups the external AI services. Each call is stateless;
// callers own conversation history.
type Collaborators struct {
	Damage      DamageSummarizer
	Explainer   FraudExplainer
	Guide       GuidanceBot
	Status      StatusBot
	Transcriber Transcriber
}
