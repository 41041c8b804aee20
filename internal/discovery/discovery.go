// Package discovery finds job-form fields on pages no strategy covers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

var (
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrNoProvider        = errors.New("no discovery provider configured")
)

// Request is what a provider sees: a bounded excerpt, never the full page.
type Request struct {
	Excerpt   string
	URL       string
	BoardName string
}

// Result of a single provider call or of a whole discovery.
type Result struct {
	Success     bool                    `json:"success"`
	Fields      []domain.FieldCandidate `json:"fields"`
	Confidence  float64                 `json:"confidence"`
	Cost        float64                 `json:"cost"`
	Provider    string                  `json:"provider,omitempty"`
	OverCeiling bool                    `json:"overCeiling,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

type Provider interface {
	Name() string
	// Discover returns the parsed result. A non-nil error may still come
	// with a Result carrying the cost already incurred.
	Discover(ctx context.Context, req Request) (Result, error)
}

// Totals are running figures since process start.
type Totals struct {
	TotalCost   float64 `json:"totalCost"`
	Operations  int     `json:"operations"`
	Failures    int     `json:"failures"`
	Fallbacks   int     `json:"fallbacks"`
	OverCeiling int     `json:"overCeiling"`
}

type Options struct {
	CostCeiling     float64
	MaxExcerptBytes int
}

// Service calls the primary provider and, on error, the fallback once.
type Service struct {
	primary  Provider
	fallback Provider
	opts     Options
	log      hclog.Logger

	mu     sync.Mutex
	totals Totals
}

func NewService(primary, fallback Provider, opts Options, log hclog.Logger) *Service {
	if opts.MaxExcerptBytes <= 0 {
		opts.MaxExcerptBytes = 12000
	}
	return &Service{primary: primary, fallback: fallback, opts: opts, log: log.Named("discovery")}
}

// Discover never returns an error: every failure is a Result with Success false.
func (s *Service) Discover(ctx context.Context, markup, pageURL, boardName string) Result {
	req := Request{
		Excerpt:   Excerpt(markup, s.opts.MaxExcerptBytes),
		URL:       pageURL,
		BoardName: boardName,
	}

	var (
		res      Result
		cost     float64
		err      error
		fellBack bool
	)
	if s.primary == nil {
		err = ErrNoProvider
	} else {
		res, err = s.primary.Discover(ctx, req)
		cost += res.Cost
		res.Provider = s.primary.Name()
	}
	if err != nil && s.fallback != nil && ctx.Err() == nil {
		s.log.Warn("primary provider failed, trying fallback", "board", boardName, "error", err)
		fellBack = true
		res, err = s.fallback.Discover(ctx, req)
		cost += res.Cost
		res.Provider = s.fallback.Name()
	}

	res.Cost = cost
	if err != nil {
		res.Success = false
		res.Fields = nil
		res.Error = err.Error()
	} else {
		// An answer with no fields is still an answer; the caller gates it.
		res.Success = true
	}
	if s.opts.CostCeiling > 0 && cost > s.opts.CostCeiling {
		res.OverCeiling = true
	}

	s.mu.Lock()
	s.totals.Operations++
	s.totals.TotalCost += cost
	if !res.Success {
		s.totals.Failures++
	}
	if fellBack {
		s.totals.Fallbacks++
	}
	if res.OverCeiling {
		s.totals.OverCeiling++
	}
	s.mu.Unlock()

	if res.OverCeiling {
		s.log.Warn("discovery cost over ceiling", "board", boardName, "cost", cost, "ceiling", s.opts.CostCeiling)
	}
	s.log.Debug("discovery done", "board", boardName, "provider", res.Provider,
		"success", res.Success, "fields", len(res.Fields), "confidence", res.Confidence, "cost", cost)
	return res
}

func (s *Service) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// Registry builds providers by configured name.
type Registry map[string]func() (Provider, error)

func (r Registry) Build(name string) (Provider, error) {
	if name == "" {
		return nil, nil
	}
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("discovery provider %q: %w", name, ErrNoProvider)
	}
	return f()
}
