package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/ratelimit"
)

const anthropicVersion = "2023-06-01"

// Anthropic calls the messages API.
type Anthropic struct {
	cfg     HTTPConfig
	hc      *http.Client
	limiter *ratelimit.HostLimiter
}

func NewAnthropic(cfg HTTPConfig, limiter *ratelimit.HostLimiter) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	return &Anthropic{cfg: cfg, hc: cfg.client(), limiter: limiter}
}

func (p *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Anthropic) Discover(ctx context.Context, req Request) (Result, error) {
	if p.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("anthropic: api key not set")
	}
	body, _ := json.Marshal(anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.maxTokens(),
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: userPrompt(req)}},
	})

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/messages"
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
	hreq.Header.Set("x-api-key", p.cfg.APIKey)
	hreq.Header.Set("anthropic-version", anthropicVersion)

	res, err := p.hc.Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("anthropic read: %w", err)
	}
	if res.StatusCode >= 400 {
		return Result{}, fmt.Errorf("anthropic status %d: %s", res.StatusCode, snippet(raw))
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("anthropic: %w: %v", ErrMalformedResponse, err)
	}
	r := Result{Cost: tokenCost(out.Usage.InputTokens, out.Usage.OutputTokens, p.cfg.InputPrice, p.cfg.OutputPrice)}

	var text strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	fields, conf, err := ParseAnswer(text.String())
	if err != nil {
		return r, fmt.Errorf("anthropic: %w", err)
	}
	r.Fields, r.Confidence = fields, conf
	return r, nil
}
