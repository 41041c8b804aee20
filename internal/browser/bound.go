package browser

import (
	"context"
	"time"
)

// Bound gives every session call its own deadline: nav for navigations,
// step for everything else. Zero durations leave calls unbounded.
func Bound(s Session, step, nav time.Duration) Session {
	return &boundSession{Session: s, step: step, nav: nav}
}

type boundSession struct {
	Session
	step, nav time.Duration
}

func within(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (b *boundSession) Navigate(ctx context.Context, url string) error {
	ctx, cancel := within(ctx, b.nav)
	defer cancel()
	return b.Session.Navigate(ctx, url)
}

func (b *boundSession) WaitVisible(ctx context.Context, selector string) error {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.WaitVisible(ctx, selector)
}

func (b *boundSession) Exists(ctx context.Context, selector string) (bool, error) {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.Exists(ctx, selector)
}

func (b *boundSession) Fill(ctx context.Context, selector, value string) error {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.Fill(ctx, selector, value)
}

func (b *boundSession) Click(ctx context.Context, selector string) error {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.Click(ctx, selector)
}

func (b *boundSession) HTML(ctx context.Context) (string, error) {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.HTML(ctx)
}

func (b *boundSession) Text(ctx context.Context) (string, error) {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.Text(ctx)
}

func (b *boundSession) URL(ctx context.Context) (string, error) {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.URL(ctx)
}

func (b *boundSession) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := within(ctx, b.step)
	defer cancel()
	return b.Session.Screenshot(ctx)
}
