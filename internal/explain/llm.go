// Package explain provides anomaly explanation backends.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-health/harrier/internal/domain"
)

const systemPrompt = "You are a healthcare claims auditor. Given a flagged insurance claim " +
	"and the anomaly findings, write a single short sentence explaining why the claim was " +
	"flagged, starting with \"Claim flagged:\". Do not invent findings beyond those given."

// LLMExplainer summarizes anomaly findings through an OpenAI-compatible
// chat completions API. Callers are expected to fall back to the template
// explanation when Summarize returns an error.
type LLMExplainer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ domain.Explainer = (*LLMExplainer)(nil)

// NewLLMExplainer builds an explainer from configuration. Returns nil when
// the explainer is disabled, which callers treat as template-only mode.
func NewLLMExplainer(cfg domain.ExplainerConfig) *LLMExplainer {
	if !cfg.Enabled {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMExplainer{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize posts the claim and its findings as a user message and returns
// the model's one-sentence explanation.
func (e *LLMExplainer) Summarize(ctx context.Context, c domain.Claim, tags, fragments []string) (string, error) {
	if e == nil {
		return "", fmt.Errorf("llm explainer is nil")
	}
	if e.apiKey == "" || e.endpoint == "" || e.model == "" {
		return "", fmt.Errorf("llm explainer misconfigured")
	}

	payload, err := json.Marshal(map[string]any{
		"claim_id":       c.ClaimID,
		"provider_id":    c.ProviderID,
		"procedure_code": c.ProcedureCode,
		"cost":           c.Cost,
		"tags":           tags,
		"findings":       fragments,
	})
	if err != nil {
		return "", fmt.Errorf("marshal claim payload: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize claim %s: %w", c.ClaimID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat response is empty")
	}
	return text, nil
}
