package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// ErrNotLoggedIn means a pre-authenticated profile has lost its session.
var ErrNotLoggedIn = errors.New("browser profile is not logged in")

type Login interface {
	Login(ctx context.Context, s browser.Session) error
}

// NewLogin picks the login flow for the board's mode.
func NewLogin(board domain.Board, creds Credentials) (Login, error) {
	switch board.Login.Mode {
	case domain.LoginNone, "":
		return noLogin{}, nil
	case domain.LoginCredentials:
		return credentialLogin{board: board, creds: creds}, nil
	case domain.LoginSession:
		return sessionLogin{board: board}, nil
	}
	return nil, fmt.Errorf("board %s: unknown login mode %q", board.ID, board.Login.Mode)
}

type noLogin struct{}

func (noLogin) Login(context.Context, browser.Session) error { return nil }

func loginURL(b domain.Board) string {
	if b.Login.URL != "" {
		return b.Login.URL
	}
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return b.PostURL
}

type credentialLogin struct {
	board domain.Board
	creds Credentials
}

func (l credentialLogin) Login(ctx context.Context, s browser.Session) error {
	if l.creds == nil {
		return fmt.Errorf("board %s: no credential source", l.board.ID)
	}
	c, err := l.creds.BoardCredentials(l.board.ID)
	if err != nil {
		return err
	}
	lc := l.board.Login
	if err := s.Navigate(ctx, loginURL(l.board)); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.Fill(ctx, lc.UsernameSelector, c.Username); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.Fill(ctx, lc.PasswordSelector, c.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.Click(ctx, lc.SubmitSelector); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if lc.LoggedInSelector != "" {
		if err := s.WaitVisible(ctx, lc.LoggedInSelector); err != nil {
			return fmt.Errorf("login not confirmed: %w", err)
		}
	}
	return nil
}

type sessionLogin struct {
	board domain.Board
}

func (l sessionLogin) Login(ctx context.Context, s browser.Session) error {
	if err := s.Navigate(ctx, loginURL(l.board)); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	ok, err := s.Exists(ctx, l.board.Login.LoggedInSelector)
	if err != nil {
		return fmt.Errorf("login check: %w", err)
	}
	if !ok {
		return fmt.Errorf("board %s: %w", l.board.ID, ErrNotLoggedIn)
	}
	return nil
}
