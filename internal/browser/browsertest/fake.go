// Package browsertest provides a scriptable in-memory browser for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
)

// Page is what a fake session serves for one URL.
type Page struct {
	HTML string
	Text string
	// Present lists selectors Exists and WaitVisible find.
	Present []string
}

// Call records one session interaction.
type Call struct {
	Op       string
	Selector string
	Value    string
}

// Session is a fake browser.Session. Zero value is usable.
type Session struct {
	mu    sync.Mutex
	Pages map[string]Page
	url   string
	calls []Call

	// OnClick runs after a click and may move the page, e.g. to a
	// confirmation URL.
	OnClick func(s *Session, selector string)
	// FailOn makes the named op ("fill", "click", "navigate", ...) fail for
	// the given selector or URL; "*" matches anything.
	FailOn map[string]string

	closed bool
}

func (s *Session) record(c Call) {
	s.calls = append(s.calls, c)
}

func (s *Session) fail(op, target string) error {
	if want, ok := s.FailOn[op]; ok && (want == "*" || want == target) {
		return fmt.Errorf("%s %s: %w", op, target, errors.New("element not found"))
	}
	return nil
}

func (s *Session) page() Page {
	return s.Pages[s.url]
}

func (s *Session) present(sel string) bool {
	for _, p := range s.page().Present {
		if p == sel {
			return true
		}
	}
	return false
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: "navigate", Value: url})
	if err := s.fail("navigate", url); err != nil {
		return err
	}
	s.url = url
	return ctx.Err()
}

// Goto moves the page without recording a call.
func (s *Session) Goto(url string) { s.url = url }

func (s *Session) WaitVisible(ctx context.Context, sel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: "wait", Selector: sel})
	if err := s.fail("wait", sel); err != nil {
		return err
	}
	if !s.present(sel) {
		return fmt.Errorf("wait for %s: %w", sel, context.DeadlineExceeded)
	}
	return nil
}

func (s *Session) Exists(_ context.Context, sel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present(sel), nil
}

func (s *Session) Fill(ctx context.Context, sel, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: "fill", Selector: sel, Value: value})
	if err := s.fail("fill", sel); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Session) Click(ctx context.Context, sel string) error {
	s.mu.Lock()
	s.record(Call{Op: "click", Selector: sel})
	if err := s.fail("click", sel); err != nil {
		s.mu.Unlock()
		return err
	}
	hook := s.OnClick
	s.mu.Unlock()
	if hook != nil {
		hook(s, sel)
	}
	return ctx.Err()
}

func (s *Session) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("html", s.url); err != nil {
		return "", err
	}
	return s.page().HTML, nil
}

func (s *Session) Text(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page().Text, nil
}

func (s *Session) URL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Session) Screenshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: "screenshot"})
	return []byte("png:" + s.url), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls returns the recorded calls, optionally filtered by op.
func (s *Session) Calls(ops ...string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if len(ops) == 0 || contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if strings.EqualFold(v, x) {
			return true
		}
	}
	return false
}

// Driver hands out sessions built by NewSession and tracks open sessions.
type Driver struct {
	NewSession func() *Session
	StartErr   error

	open    atomic.Int64
	maxOpen atomic.Int64
	opened  atomic.Int64
}

func (d *Driver) Start(context.Context) error {
	if d.StartErr != nil {
		return fmt.Errorf("%w: %v", browser.ErrDriverInit, d.StartErr)
	}
	return nil
}

func (d *Driver) Open(ctx context.Context) (browser.Session, error) {
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	s := &Session{}
	if d.NewSession != nil {
		s = d.NewSession()
	}
	n := d.open.Add(1)
	d.opened.Add(1)
	for {
		m := d.maxOpen.Load()
		if n <= m || d.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}
	return &tracked{Session: s, d: d}, nil
}

func (d *Driver) Close() error { return nil }

// MaxOpen is the highest number of simultaneously open sessions seen.
func (d *Driver) MaxOpen() int { return int(d.maxOpen.Load()) }

// Opened counts every session handed out.
func (d *Driver) Opened() int { return int(d.opened.Load()) }

type tracked struct {
	*Session
	d    *Driver
	once sync.Once
}

func (t *tracked) Close() error {
	t.once.Do(func() { t.d.open.Add(-1) })
	return t.Session.Close()
}
