package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/josiah-roberts/muninn/internal/config"
	"github.com/josiah-roberts/muninn/internal/retry"
	"github.com/josiah-roberts/muninn/pkg/model"
)

// Client talks to an Anthropic-style messages endpoint and asks for
// JSON-only output.
type Client struct {
	apiKey  string
	base    string
	model   string
	timeout time.Duration
	retry   retry.Policy
	http    *http.Client
}

func NewClient(cfg config.AgentConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		base:    cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   retry.DefaultPolicy(cfg.MaxAttempts),
		http:    &http.Client{},
	}
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// analysisWire is the JSON shape the model is instructed to return.
type analysisWire struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Themes         []string `json:"themes"`
	Tags           []string `json:"tags"`
	Mood           string   `json:"mood"`
	People         []string `json:"people"`
	Places         []string `json:"places"`
	TimeReferences []string `json:"time_references"`
	KeyInsights    []string `json:"key_insights"`
	FollowUps      []string `json:"follow_up_questions"`
	RelatedEntries []struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	} `json:"related_entries"`
}

func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*model.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.complete(ctx, buildAnalysisPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var wire analysisWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return nil, fmt.Errorf("parse analysis json: %w (response: %s)", err, raw)
	}

	result := &model.AnalysisResult{
		Analysis: model.Analysis{
			Title:          wire.Title,
			Summary:        wire.Summary,
			Themes:         wire.Themes,
			Tags:           wire.Tags,
			Mood:           wire.Mood,
			People:         wire.People,
			Places:         wire.Places,
			TimeReferences: wire.TimeReferences,
			KeyInsights:    wire.KeyInsights,
		},
		FollowUps: wire.FollowUps,
	}
	for _, re := range wire.RelatedEntries {
		result.RelatedEntries = append(result.RelatedEntries, model.RelatedEntry{ID: re.ID, Reason: re.Reason})
	}

	// Keep the raw exchange as the debug trajectory.
	trace, err := json.Marshal(map[string]string{"model": c.model, "response": raw})
	if err == nil {
		result.Trajectory = trace
	}
	return result, nil
}

func (c *Client) ReflectionPrompts(ctx context.Context, req PromptRequest) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.complete(ctx, buildPromptsPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("reflection prompts: %w", err)
	}

	var out struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse prompts json: %w (response: %s)", err, raw)
	}
	return out.Prompts, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		text, err := c.completeOnce(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *Client) completeOnce(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: 4096,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-api-key", c.apiKey)
	r.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(r)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var ar apiResponse
	if err := json.Unmarshal(bodyBytes, &ar); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if ar.Error != nil {
		return "", fmt.Errorf("api error: %s", ar.Error.Message)
	}
	if len(ar.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return ar.Content[0].Text, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// its JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
