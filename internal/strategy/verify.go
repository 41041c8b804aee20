package strategy

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

type VerdictKind int

const (
	Unclear VerdictKind = iota
	Succeeded
	Rejected
)

func (k VerdictKind) String() string {
	switch k {
	case Succeeded:
		return "success"
	case Rejected:
		return "rejected"
	}
	return "unclear"
}

// Verdict is the page's answer after submit.
type Verdict struct {
	Kind        VerdictKind
	ExternalURL string
	Reason      string
}

const StatusUnclear = "status unclear"

var (
	// Post-submit messages only; field helper lines go in a board's error_texts.
	defaultErrorTexts = []string{
		"please correct the errors",
		"there was a problem",
	}
	defaultSuccessTexts = []string{
		"has been posted",
		"successfully posted",
		"thank you for posting",
		"thanks for posting",
		"your job is live",
	}
)

// Verifier applies the default success heuristic: error text rejects,
// a success selector or text accepts, a URL change away from the post page
// accepts. Nothing decisive within Wait is Unclear.
type Verifier struct {
	Board domain.Board
	Wait  time.Duration
	Poll  time.Duration
}

func (v Verifier) Verify(ctx context.Context, s browser.Session, postURL string) Verdict {
	wait, poll := v.Wait, v.Poll
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		if vd, ok := v.check(ctx, s, postURL); ok {
			return vd
		}
		select {
		case <-ctx.Done():
			return Verdict{Kind: Unclear, Reason: StatusUnclear}
		case <-t.C:
		}
	}
}

func (v Verifier) check(ctx context.Context, s browser.Session, postURL string) (Verdict, bool) {
	cur, _ := s.URL(ctx)
	external := ""
	if cur != "" && !samePage(cur, postURL) {
		external = cur
	}

	if text, err := s.Text(ctx); err == nil {
		lower := strings.ToLower(text)
		for _, e := range slices.Concat(v.Board.ErrorTexts, defaultErrorTexts) {
			if e != "" && strings.Contains(lower, strings.ToLower(e)) {
				return Verdict{Kind: Rejected, Reason: "board reported: " + e}, true
			}
		}
		for _, m := range slices.Concat(v.Board.SuccessTexts, defaultSuccessTexts) {
			if m != "" && strings.Contains(lower, strings.ToLower(m)) {
				return Verdict{Kind: Succeeded, ExternalURL: external}, true
			}
		}
	}
	if v.Board.SuccessSelector != "" {
		if ok, err := s.Exists(ctx, v.Board.SuccessSelector); err == nil && ok {
			return Verdict{Kind: Succeeded, ExternalURL: external}, true
		}
	}
	if external != "" {
		return Verdict{Kind: Succeeded, ExternalURL: external}, true
	}
	return Verdict{}, false
}

// samePage compares scheme, host and path, ignoring query, fragment and a
// trailing slash.
func samePage(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimRight(ua.Path, "/") == strings.TrimRight(ub.Path, "/")
}
