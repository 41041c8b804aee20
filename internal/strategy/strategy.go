// Package strategy holds per-board automation recipes.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/secrets"
)

// Strategy automates one board. Implementations are built per attempt and
// hold no state between attempts.
type Strategy interface {
	Login(ctx context.Context, s browser.Session) error
	FillForm(ctx context.Context, s browser.Session, job domain.Job) error
	Submit(ctx context.Context, s browser.Session) error
	Verify(ctx context.Context, s browser.Session, postURL string) Verdict
}

// Credentials resolves login credentials for a board.
type Credentials interface {
	BoardCredentials(boardID string) (secrets.Credentials, error)
}

// Deps are handed to every factory.
type Deps struct {
	Credentials Credentials
	// SubmitWait bounds success detection after submit.
	SubmitWait time.Duration
	Poll       time.Duration
}

type Factory func(board domain.Board, deps Deps) (Strategy, error)

const (
	NameSelector  = "selector"
	NameDiscovery = "discovery"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Registry maps strategy names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	deps      Deps
}

// NewRegistry returns a registry with the selector strategy registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{factories: map[string]Factory{}, deps: deps}
	r.Register(NameSelector, NewSelector)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve builds a fresh strategy for board. It returns nil, nil when the
// board has none and discovery should take over.
func (r *Registry) Resolve(board domain.Board) (Strategy, error) {
	name := board.Strategy
	switch name {
	case NameDiscovery:
		return nil, nil
	case "":
		if !board.HasStaticSelectors() {
			return nil, nil
		}
		name = NameSelector
	}

	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("board %s: %w %q", board.ID, ErrUnknownStrategy, name)
	}
	return f(board, r.deps)
}

// Base carries the parts every strategy shares: login by mode and default
// success detection. Bespoke strategies embed it and override what differs.
type Base struct {
	Board    domain.Board
	Auth     Login
	Verifier Verifier
}

func NewBase(board domain.Board, deps Deps) (Base, error) {
	auth, err := NewLogin(board, deps.Credentials)
	if err != nil {
		return Base{}, err
	}
	return Base{
		Board:    board,
		Auth:     auth,
		Verifier: Verifier{Board: board, Wait: deps.SubmitWait, Poll: deps.Poll},
	}, nil
}

func (b Base) Login(ctx context.Context, s browser.Session) error {
	return b.Auth.Login(ctx, s)
}

func (b Base) Verify(ctx context.Context, s browser.Session, postURL string) Verdict {
	return b.Verifier.Verify(ctx, s, postURL)
}
