package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser/browsertest"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/ratelimit"
)

func TestPacing_DelayWithinBounds(t *testing.T) {
	p := browser.Pacing{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, p.Min)
		assert.LessOrEqual(t, d, p.Max)
	}
	assert.Equal(t, 5*time.Millisecond, browser.Pacing{Min: 5 * time.Millisecond}.Delay())
}

func TestPace_DelaysFillsAndClicks(t *testing.T) {
	fake := &browsertest.Session{}
	s := browser.Pace(fake, browser.Pacing{Min: 15 * time.Millisecond, Max: 15 * time.Millisecond})

	start := time.Now()
	require.NoError(t, s.Fill(context.Background(), "#a", "x"))
	require.NoError(t, s.Click(context.Background(), "#b"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	calls := fake.Calls("fill", "click")
	require.Len(t, calls, 2)
	assert.Equal(t, "#a", calls[0].Selector)
}

func TestPace_RespectsCancellation(t *testing.T) {
	fake := &browsertest.Session{}
	s := browser.Pace(fake, browser.Pacing{Min: time.Hour, Max: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Fill(ctx, "#a", "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Calls("fill"))
}

type slowSession struct {
	browsertest.Session
	deadline time.Time
}

func (s *slowSession) Fill(ctx context.Context, _, _ string) error {
	s.deadline, _ = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestBound_StepDeadline(t *testing.T) {
	inner := &slowSession{}
	s := browser.Bound(inner, 20*time.Millisecond, time.Second)

	start := time.Now()
	err := s.Fill(context.Background(), "#a", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(20*time.Millisecond), inner.deadline, 15*time.Millisecond)
}

func TestPace_NavigateWaitsPerHost(t *testing.T) {
	fake := &browsertest.Session{}
	s := browser.Pace(fake, browser.Pacing{Hosts: ratelimit.NewHostLimiter(10, 1)})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, s.Navigate(ctx, "https://a.example/post"))
	require.NoError(t, s.Navigate(ctx, "https://b.example/post"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "hosts do not share a bucket")

	require.NoError(t, s.Navigate(ctx, "https://a.example/login"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, fake.Calls("navigate"), 3)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, s.Navigate(cancelled, "https://a.example/post"))
	assert.Len(t, fake.Calls("navigate"), 3)
}
