package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/ratelimit"
)

// HTTPConfig is shared by the hosted-model providers.
type HTTPConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxTokens   int
	InputPrice  float64
	OutputPrice float64
	Timeout     time.Duration
}

func (c HTTPConfig) client() *http.Client {
	t := c.Timeout
	if t <= 0 {
		t = 30 * time.Second
	}
	return &http.Client{Timeout: t}
}

func (c HTTPConfig) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 800
	}
	return c.MaxTokens
}

// OpenAI calls an OpenAI-compatible chat completions endpoint in JSON mode.
type OpenAI struct {
	cfg     HTTPConfig
	hc      *http.Client
	limiter *ratelimit.HostLimiter
}

func NewOpenAI(cfg HTTPConfig, limiter *ratelimit.HostLimiter) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{cfg: cfg, hc: cfg.client(), limiter: limiter}
}

func (p *OpenAI) Name() string { return "openai" }

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat map[string]any  `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAI) Discover(ctx context.Context, req Request) (Result, error) {
	if p.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("openai: api key not set")
	}
	body, _ := json.Marshal(openAIRequest{
		Model: p.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:      p.cfg.maxTokens(),
		ResponseFormat: map[string]any{"type": "json_object"},
	})

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	if p.limiter != nil {
		if err := p.limiter.WaitURL(ctx, endpoint); err != nil {
			return Result{}, err
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.hc.Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("openai request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("openai read: %w", err)
	}
	if res.StatusCode >= 400 {
		return Result{}, fmt.Errorf("openai status %d: %s", res.StatusCode, snippet(raw))
	}

	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("openai: %w: %v", ErrMalformedResponse, err)
	}
	r := Result{Cost: tokenCost(out.Usage.PromptTokens, out.Usage.CompletionTokens, p.cfg.InputPrice, p.cfg.OutputPrice)}
	if len(out.Choices) == 0 {
		return r, fmt.Errorf("openai: %w: no choices", ErrMalformedResponse)
	}
	fields, conf, err := ParseAnswer(out.Choices[0].Message.Content)
	if err != nil {
		return r, fmt.Errorf("openai: %w", err)
	}
	r.Fields, r.Confidence = fields, conf
	return r, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
