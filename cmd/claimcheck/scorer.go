package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/rules"
)

// Scorer assigns a risk level to a case.
type Scorer interface {
	Score(ctx context.Context, c Case) (domain.RiskLevel, error)
}

// offlineScorer runs the fraud engine in-process.
type offlineScorer struct {
	engine *rules.Engine
	now    func() time.Time
}

func (s *offlineScorer) Score(_ context.Context, c Case) (domain.RiskLevel, error) {
	claim, err := c.Request.ToClaim(s.now())
	if err != nil {
		return "", err
	}
	return s.engine.Assess(claim).RiskLevel, nil
}

// remoteScorer submits each case to a running server and reads back the
// assessment. All cases share one session.
type remoteScorer struct {
	client    *http.Client
	baseURL   string
	sessionID string
}

func (s *remoteScorer) Score(ctx context.Context, c Case) (domain.RiskLevel, error) {
	var claim domain.ClaimRecord
	if err := s.do(ctx, http.MethodPost, "/claims", c.Request, http.StatusCreated, &claim); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}

	var assessment domain.AssessmentResponse
	if err := s.do(ctx, http.MethodGet, "/claims/"+claim.ID+"/assessment", nil, http.StatusOK, &assessment); err != nil {
		return "", fmt.Errorf("assessment: %w", err)
	}
	return assessment.RiskLevel, nil
}

func (s *remoteScorer) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", s.sessionID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
