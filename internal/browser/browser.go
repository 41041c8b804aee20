// Package browser drives a headless browser for one posting attempt at a time.
package browser

import (
	"context"
	"errors"
)

// ErrDriverInit means no session can be opened at all.
var ErrDriverInit = errors.New("browser driver init failed")

// Session is one exclusively owned page. Every call is bounded by ctx.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Driver owns the shared browser process and hands out sessions.
type Driver interface {
	// Start launches the browser if it is not running. Failures wrap ErrDriverInit.
	Start(ctx context.Context) error
	Open(ctx context.Context) (Session, error)
	Close() error
}
