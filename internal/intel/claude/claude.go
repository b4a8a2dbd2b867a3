// Package claude implements an intel.Provider backed by the Claude API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/intel"
)

const defaultBaseURL = "https://api.anthropic.com"

const systemPrompt = `You are an SRE assistant analyzing an infrastructure incident.
Given the alert, its labels, and recent check results, respond with a JSON array
of remediation recommendations. Each element has the fields "title",
"description", "priority" (high, medium or low) and optionally "command".
Respond with the JSON array only, no prose.`

// Provider implements intel.Provider against the Claude messages API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(u, "/") }
}

// New creates a Claude-backed provider with the given API key and model name.
func New(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return "claude" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Analyze sends the incident context to the Claude API and parses the JSON
// recommendation list out of the text response.
func (p *Provider) Analyze(ctx context.Context, in *intel.IncidentContext) ([]intel.Recommendation, error) {
	prompt, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal incident context: %w", err)
	}

	body, err := json.Marshal(&request{
		Model:     p.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: string(prompt)}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("claude api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseRecommendations(text.String())
}

// parseRecommendations extracts the JSON array from the model output. The
// model occasionally wraps the array in a markdown fence or leading prose.
func parseRecommendations(text string) ([]intel.Recommendation, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no recommendation array in response: %q", text)
	}

	var recs []intel.Recommendation
	if err := json.Unmarshal([]byte(text[start:end+1]), &recs); err != nil {
		return nil, fmt.Errorf("parse recommendations: %w", err)
	}
	return recs, nil
}
