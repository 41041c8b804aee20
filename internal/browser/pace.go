package browser

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/ratelimit"
)

// Pacing spaces out interactions so form input does not arrive at machine speed.
type Pacing struct {
	Min, Max time.Duration
	// Hosts, if set, rate-limits navigations per board host.
	Hosts *ratelimit.HostLimiter
}

// Delay picks a uniformly random delay in [Min, Max].
func (p Pacing) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// Pace wraps s so fills and clicks wait a random delay first and
// navigations respect the host limiter.
func Pace(s Session, p Pacing) Session {
	return &pacedSession{Session: s, p: p}
}

type pacedSession struct {
	Session
	p Pacing
}

func (s *pacedSession) Navigate(ctx context.Context, url string) error {
	if s.p.Hosts != nil {
		if err := s.p.Hosts.WaitURL(ctx, url); err != nil {
			return err
		}
	}
	return s.Session.Navigate(ctx, url)
}

func (s *pacedSession) Fill(ctx context.Context, selector, value string) error {
	if err := sleep(ctx, s.p.Delay()); err != nil {
		return err
	}
	return s.Session.Fill(ctx, selector, value)
}

func (s *pacedSession) Click(ctx context.Context, selector string) error {
	if err := sleep(ctx, s.p.Delay()); err != nil {
		return err
	}
	return s.Session.Click(ctx, selector)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
