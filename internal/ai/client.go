// Package ai implements the claim collaborators on top of the Gemini
// generateContent REST API.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var tracer = otel.Tracer("claimguard-ai")

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// ErrEmptyResponse is returned when the model produced no usable candidate.
var ErrEmptyResponse = errors.New("empty model response")

// Client talks to Gemini. It is safe for concurrent use.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	visionModel string
	attempts    int
	retryDelay  time.Duration
	httpClient  *http.Client
	sanitizer   *bluemonday.Policy
}

// NewClient creates a Gemini client from cfg. An API key is required.
func NewClient(cfg domain.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key not configured", domain.ErrCollaboratorUnavailable)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	model := valueOrDefault(cfg.Model, defaultModel)
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(valueOrDefault(cfg.BaseURL, defaultBaseURL), "/"),
		model:       model,
		visionModel: valueOrDefault(cfg.VisionModel, model),
		attempts:    max(cfg.MaxRetries, 0) + 1,
		retryDelay:  time.Second,
		httpClient:  &http.Client{Timeout: timeout},
		sanitizer:   bluemonday.StrictPolicy(),
	}, nil
}

// New returns the collaborators for cfg. Without an API key every
// collaborator is Unavailable, so the rest of the system keeps working.
func New(cfg domain.AIConfig) domain.Collaborators {
	c, err := NewClient(cfg)
	if err != nil {
		return Collaborators(Unavailable{})
	}
	return Collaborators(c)
}

// Backend implements every collaborator interface.
type Backend interface {
	domain.DamageSummarizer
	domain.FraudExplainer
	domain.GuidanceBot
	domain.StatusBot
	domain.Transcriber
}

// Collaborators binds one backend to every collaborator slot.
func Collaborators(b Backend) domain.Collaborators {
	return domain.Collaborators{
		Damage:      b,
		Explainer:   b,
		Guide:       b,
		Status:      b,
		Transcriber: b,
	}
}

// Wire types for generateContent.
type (
	part struct {
		Text       string      `json:"text,omitempty"`
		InlineData *inlineData `json:"inlineData,omitempty"`
	}

	inlineData struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	}

	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	generationConfig struct {
		ResponseMimeType string `json:"responseMimeType,omitempty"`
	}

	safetySetting struct {
		Category  string `json:"category"`
		Threshold string `json:"threshold"`
	}

	generateRequest struct {
		Contents         []content        `json:"contents"`
		GenerationConfig generationConfig `json:"generationConfig"`
		SafetySettings   []safetySetting  `json:"safetySettings,omitempty"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback *struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback,omitempty"`
	}
)

// Damage photos of accidents routinely trip the default filters.
var permissiveSafety = []safetySetting{
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
}

func textPart(s string) part {
	return part{Text: s}
}

func mediaPart(m domain.Media) part {
	return part{InlineData: &inlineData{
		MimeType: m.MimeType,
		Data:     base64.StdEncoding.EncodeToString(m.Data),
	}}
}

// generate sends a single-turn request in JSON response mode and decodes
// the model's JSON answer into out.
func (c *Client) generate(ctx context.Context, op, model string, parts []part, safety []safetySetting, out any) error {
	ctx, span := tracer.Start(ctx, "ai."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ai.model", model),
			attribute.Int("ai.parts", len(parts)),
		),
	)
	defer span.End()

	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: domain.RoleUser, Parts: parts}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		SafetySettings:   safety,
	})
	if err != nil {
		return fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	status, body, err := doWithRetry(ctx, c.attempts, c.retryDelay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if retryable(resp.StatusCode) {
			return resp.StatusCode, b, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(b, maxErrorBody))
		}
		// Other failures are final and handled below.
		return resp.StatusCode, b, nil
	})
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("gemini API error: %w", err)
	}
	if status != http.StatusOK {
		err := fmt.Errorf("gemini API error: status %d: %s", status, truncate(body, maxErrorBody))
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	text, err := candidateText(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := json.Unmarshal([]byte(stripFence(text)), out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode model output")
		return fmt.Errorf("gemini: decode model output: %w", err)
	}
	return nil
}

func candidateText(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// stripFence removes a ```json fence some models wrap JSON output in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// clean strips any markup from model text and returns plain text.
func (c *Client) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(s)))
}

func (c *Client) cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := c.clean(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func valueOrDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}
