package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser/browsertest"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/discovery"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/strategy"
)

const (
	postA = "https://a.example/post"
	postB = "https://b.example/new"
)

func catalog(t *testing.T) *config.Catalog {
	t.Helper()
	c, err := config.NewCatalog([]domain.Board{
		{
			ID: "a", Name: "Board A", PostURL: postA, Enabled: true,
			Selectors: map[string]string{"title": "#t", "description": "#d", "submit": "#s"},
		},
		{ID: "b", Name: "Board B", PostURL: postB, Enabled: true},
		{ID: "off", PostURL: "https://off.example/post"},
		{
			ID: "mail", PostURL: "https://mail.example/post", Enabled: true,
			Selectors:    map[string]string{"title": "#t", "submit": "#s"},
			ConfirmEmail: &domain.EmailRule{FromContains: "mail.example"},
		},
	})
	require.NoError(t, err)
	return c
}

type fakeDiscovery struct {
	res   discovery.Result
	calls int
}

func (f *fakeDiscovery) Discover(context.Context, string, string, string) discovery.Result {
	f.calls++
	return f.res
}

type fakeConfirm struct{ ok bool }

func (f fakeConfirm) AwaitConfirmation(context.Context, domain.EmailRule, time.Time) (bool, error) {
	return f.ok, nil
}

type panicResolver struct{}

func (panicResolver) Resolve(domain.Board) (strategy.Strategy, error) { return panicStrategy{}, nil }

type panicStrategy struct{}

func (panicStrategy) Login(context.Context, browser.Session) error { return nil }
func (panicStrategy) FillForm(context.Context, browser.Session, domain.Job) error {
	panic("nil selector map")
}
func (panicStrategy) Submit(context.Context, browser.Session) error { return nil }
func (panicStrategy) Verify(context.Context, browser.Session, string) strategy.Verdict {
	return strategy.Verdict{}
}

type harness struct {
	exec    *Executor
	driver  *browsertest.Driver
	disc    *fakeDiscovery
	session *browsertest.Session
}

// moveOnSubmit sends the page to a confirmation URL when #s or #submit is clicked.
func moveOnSubmit(s *browsertest.Session, sel string) {
	if sel == "#s" || sel == "#submit" {
		s.Goto("https://a.example/jobs/42")
	}
}

func newHarness(t *testing.T, mutate func(*harness, *Options)) *harness {
	t.Helper()
	h := &harness{disc: &fakeDiscovery{}}
	h.driver = &browsertest.Driver{NewSession: func() *browsertest.Session {
		h.session = &browsertest.Session{
			Pages: map[string]browsertest.Page{
				postB: {HTML: `<form><input id="title"><button id="submit">Post</button></form>`},
			},
			OnClick: moveOnSubmit,
		}
		return h.session
	}}
	opts := Options{
		StepTimeout: time.Second,
		NavTimeout:  time.Second,
		SubmitWait:  40 * time.Millisecond,
		Poll:        5 * time.Millisecond,
	}
	var resolver Resolver = strategy.NewRegistry(strategy.Deps{SubmitWait: opts.SubmitWait, Poll: opts.Poll})
	var confirm Confirmer
	if mutate != nil {
		mutate(h, &opts)
	}
	h.exec = New(h.driver, catalog(t), resolver, h.disc, confirm, opts, hclog.NewNullLogger())
	return h
}

var job = domain.Job{ID: "j1", Title: "Backend Engineer", Description: "Go services", Company: "Acme", ContactEmail: "hr@acme.test"}

func posting(board string) domain.Posting {
	return domain.Posting{ID: "p-" + board, JobID: job.ID, BoardID: board, Status: domain.PostingActive}
}

func TestExecute_StrategyPathSuccess(t *testing.T) {
	h := newHarness(t, nil)
	out := h.exec.Execute(context.Background(), job, posting("a"))

	require.True(t, out.Success, out.ErrorMessage)
	assert.Equal(t, "https://a.example/jobs/42", out.ExternalURL)
	assert.False(t, out.Discovered)
	assert.NotEmpty(t, out.Screenshot)
	assert.Zero(t, h.disc.calls)
	assert.True(t, h.session.Closed())

	fills := h.session.Calls("fill")
	require.Len(t, fills, 2)
	assert.Equal(t, "#t", fills[0].Selector)
}

func TestExecute_UnknownAndDisabledBoardsOpenNoSession(t *testing.T) {
	h := newHarness(t, nil)

	out := h.exec.Execute(context.Background(), job, posting("nope"))
	assert.Equal(t, domain.FailureConfig, out.Kind)
	assert.Contains(t, out.ErrorMessage, "unknown board")

	out = h.exec.Execute(context.Background(), job, posting("off"))
	assert.Equal(t, domain.FailureConfig, out.Kind)
	assert.Contains(t, out.ErrorMessage, "disabled")

	assert.Zero(t, h.driver.Opened())
}

func TestExecute_DiscoveryLowConfidenceNeverFills(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.res = discovery.Result{
		Success:    true,
		Confidence: 0.4,
		Cost:       0.001,
		Fields: []domain.FieldCandidate{
			{Role: domain.RoleTitle, Selector: "#title", Confidence: 0.9},
			{Role: domain.RoleSubmit, Selector: "#submit", Confidence: 0.9},
		},
	}

	for i := 0; i < 2; i++ {
		out := h.exec.Execute(context.Background(), job, posting("b"))
		assert.False(t, out.Success)
		assert.Equal(t, MsgFormNotFound, out.ErrorMessage)
		assert.Equal(t, domain.FailureDiscovery, out.Kind)
		assert.True(t, out.Discovered)
		assert.Equal(t, 0.001, out.Cost)
		assert.NotEmpty(t, out.Screenshot)
		assert.Empty(t, h.session.Calls("fill", "click"))
	}
}

func TestExecute_DiscoveryFillsAboveFloorOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.res = discovery.Result{
		Success:    true,
		Confidence: 0.8,
		Fields: []domain.FieldCandidate{
			{Role: domain.RoleTitle, Selector: "#title", Confidence: 0.9},
			{Role: domain.RoleDescription, Selector: "#desc", Confidence: 0.45},
			{Role: domain.RoleLocation, Selector: "#loc", Confidence: 0.9}, // job has no location
			{Role: domain.RoleOther, Selector: "#ref", Confidence: 0.9},
			{Role: domain.RoleSubmit, Selector: "#submit", Confidence: 0.95},
		},
	}
	out := h.exec.Execute(context.Background(), job, posting("b"))
	require.True(t, out.Success, out.ErrorMessage)
	assert.True(t, out.Discovered)

	fills := h.session.Calls("fill")
	require.Len(t, fills, 1)
	assert.Equal(t, "#title", fills[0].Selector)
	assert.Equal(t, job.Title, fills[0].Value)
	assert.Equal(t, "#submit", h.session.Calls("click")[0].Selector)
}

func TestExecute_DiscoveryNoSubmitIsFormNotFound(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.res = discovery.Result{
		Success:    true,
		Confidence: 0.9,
		Fields:     []domain.FieldCandidate{{Role: domain.RoleTitle, Selector: "#title", Confidence: 0.9}},
	}
	out := h.exec.Execute(context.Background(), job, posting("b"))
	assert.Equal(t, MsgFormNotFound, out.ErrorMessage)
	assert.Empty(t, h.session.Calls("fill"))
}

type emptyProvider struct{}

func (emptyProvider) Name() string { return "openai" }

func (emptyProvider) Discover(context.Context, discovery.Request) (discovery.Result, error) {
	return discovery.Result{Confidence: 0.9, Cost: 0.001}, nil
}

func TestExecute_DiscoveryEmptyAnswerIsFormNotFound(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.discovery = discovery.NewService(emptyProvider{}, nil, discovery.Options{CostCeiling: 0.01}, hclog.NewNullLogger())

	out := h.exec.Execute(context.Background(), job, posting("b"))
	assert.False(t, out.Success)
	assert.Equal(t, MsgFormNotFound, out.ErrorMessage)
	assert.Equal(t, domain.FailureDiscovery, out.Kind)
	assert.Equal(t, 0.001, out.Cost)
	assert.Empty(t, h.session.Calls("fill", "click"))
}

func TestExecute_DiscoveryProviderFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.res = discovery.Result{Error: "malformed provider response"}
	out := h.exec.Execute(context.Background(), job, posting("b"))
	assert.Equal(t, domain.FailureDiscovery, out.Kind)
	assert.Contains(t, out.ErrorMessage, "malformed")
	assert.False(t, out.Kind.Retryable())
}

func TestExecute_CostCeiling(t *testing.T) {
	res := discovery.Result{
		Success:     true,
		Confidence:  0.9,
		Cost:        0.02,
		OverCeiling: true,
		Fields: []domain.FieldCandidate{
			{Role: domain.RoleTitle, Selector: "#title", Confidence: 0.9},
			{Role: domain.RoleSubmit, Selector: "#submit", Confidence: 0.9},
		},
	}

	h := newHarness(t, nil)
	h.disc.res = res
	out := h.exec.Execute(context.Background(), job, posting("b"))
	assert.True(t, out.Success, "default policy proceeds")
	assert.Equal(t, 0.02, out.Cost)

	h = newHarness(t, func(_ *harness, o *Options) { o.AbortOverCeiling = true })
	h.disc.res = res
	out = h.exec.Execute(context.Background(), job, posting("b"))
	assert.False(t, out.Success)
	assert.Equal(t, domain.FailureDiscovery, out.Kind)
	assert.Contains(t, out.ErrorMessage, "over ceiling")
	assert.Empty(t, h.session.Calls("fill"))
}

func TestExecute_FillErrorIsAutomationWithScreenshot(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.NewSession = func() *browsertest.Session {
		h.session = &browsertest.Session{FailOn: map[string]string{"fill": "#d"}}
		return h.session
	}
	out := h.exec.Execute(context.Background(), job, posting("a"))
	assert.False(t, out.Success)
	assert.Equal(t, domain.FailureAutomation, out.Kind)
	assert.Contains(t, out.ErrorMessage, "fill description")
	assert.NotEmpty(t, out.Screenshot)
	assert.Empty(t, h.session.Calls("click"))
	assert.True(t, h.session.Closed())
}

func TestExecute_StatusUnclear(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.NewSession = func() *browsertest.Session {
		h.session = &browsertest.Session{}
		return h.session
	}
	out := h.exec.Execute(context.Background(), job, posting("a"))
	assert.False(t, out.Success)
	assert.Equal(t, strategy.StatusUnclear, out.ErrorMessage)
	assert.True(t, out.Kind.Retryable())
}

func TestExecute_EmailConfirmationSettlesUnclear(t *testing.T) {
	for _, confirmed := range []bool{true, false} {
		h := newHarness(t, nil)
		h.driver.NewSession = func() *browsertest.Session {
			h.session = &browsertest.Session{}
			return h.session
		}
		h.exec.confirm = fakeConfirm{ok: confirmed}
		out := h.exec.Execute(context.Background(), job, posting("mail"))
		assert.Equal(t, confirmed, out.Success)
	}
}

func TestExecute_DriverInitFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.StartErr = errors.New("chrome not found")
	out := h.exec.Execute(context.Background(), job, posting("a"))
	assert.Equal(t, domain.FailureDriver, out.Kind)
	assert.Contains(t, out.ErrorMessage, "chrome not found")
	assert.Nil(t, out.Screenshot)
}

func TestExecute_PanicBecomesOutcome(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.strategies = panicResolver{}
	var out domain.Outcome
	require.NotPanics(t, func() { out = h.exec.Execute(context.Background(), job, posting("a")) })
	assert.False(t, out.Success)
	assert.Contains(t, out.ErrorMessage, "panic: nil selector map")
	assert.NotEmpty(t, out.Screenshot)
	assert.True(t, h.session.Closed())
}
