// Package executor runs one posting attempt against one board and turns
// whatever happens into a domain.Outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/discovery"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/strategy"
)

const (
	MsgFormNotFound = "form not found"
)

type Catalog interface {
	Board(id string) (domain.Board, bool)
}

type Resolver interface {
	Resolve(board domain.Board) (strategy.Strategy, error)
}

type Discoverer interface {
	Discover(ctx context.Context, markup, pageURL, boardName string) discovery.Result
}

// Confirmer checks for a board's confirmation email.
type Confirmer interface {
	AwaitConfirmation(ctx context.Context, rule domain.EmailRule, since time.Time) (bool, error)
}

type Options struct {
	StepTimeout time.Duration
	NavTimeout  time.Duration
	SubmitWait  time.Duration
	Poll        time.Duration

	MinConfidence    float64
	FieldFloor       float64
	AbortOverCeiling bool

	Pacing browser.Pacing
}

func (o *Options) defaults() {
	if o.StepTimeout <= 0 {
		o.StepTimeout = 15 * time.Second
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.SubmitWait <= 0 {
		o.SubmitWait = 10 * time.Second
	}
	if o.MinConfidence == 0 {
		o.MinConfidence = 0.7
	}
	if o.FieldFloor == 0 {
		o.FieldFloor = 0.5
	}
}

type Executor struct {
	driver     browser.Driver
	catalog    Catalog
	strategies Resolver
	discovery  Discoverer
	confirm    Confirmer
	opts       Options
	log        hclog.Logger
}

// New wires an executor. confirm may be nil.
func New(driver browser.Driver, catalog Catalog, strategies Resolver, disc Discoverer, confirm Confirmer, opts Options, log hclog.Logger) *Executor {
	opts.defaults()
	return &Executor{
		driver:     driver,
		catalog:    catalog,
		strategies: strategies,
		discovery:  disc,
		confirm:    confirm,
		opts:       opts,
		log:        log.Named("executor"),
	}
}

// attempt carries one run's state.
type attempt struct {
	job   domain.Job
	board domain.Board
	sess  browser.Session
	log   hclog.Logger
	out   domain.Outcome
}

// Execute never panics and never returns an error; every failure is an Outcome.
func (e *Executor) Execute(ctx context.Context, job domain.Job, p domain.Posting) (out domain.Outcome) {
	log := e.log.With("job", job.ID, "posting", p.ID, "board", p.BoardID, "attempt", p.Attempt())

	board, ok := e.catalog.Board(p.BoardID)
	if !ok {
		return domain.Failed(domain.FailureConfig, fmt.Sprintf("unknown board %q", p.BoardID))
	}
	if !board.Enabled {
		return domain.Failed(domain.FailureConfig, fmt.Sprintf("board %q is disabled", board.ID))
	}
	st, err := e.strategies.Resolve(board)
	if err != nil {
		return domain.Failed(domain.FailureConfig, err.Error())
	}

	raw, err := e.driver.Open(ctx)
	if err != nil {
		kind := domain.FailureAutomation
		if errors.Is(err, browser.ErrDriverInit) {
			kind = domain.FailureDriver
		}
		log.Error("open session", "error", err)
		return domain.Failed(kind, err.Error())
	}

	a := &attempt{
		job:   job,
		board: board,
		sess:  browser.Pace(browser.Bound(raw, e.opts.StepTimeout, e.opts.NavTimeout), e.opts.Pacing),
		log:   log,
	}

	defer func() {
		if err := raw.Close(); err != nil {
			log.Warn("close session", "error", err)
		}
	}()
	defer func() {
		out.Screenshot = e.screenshot(ctx, a)
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("attempt panicked", "panic", r, "stack", string(debug.Stack()))
			out = domain.Failed(domain.FailureAutomation, fmt.Sprintf("panic: %v", r))
			out.Cost = a.out.Cost
			out.Discovered = a.out.Discovered
		}
	}()

	if st != nil {
		log.Debug("using strategy")
		e.runStrategy(ctx, a, st)
	} else {
		log.Debug("no strategy, using form discovery")
		e.runDiscovery(ctx, a)
	}

	if a.out.Success {
		log.Info("posted", "url", a.out.ExternalURL, "cost", a.out.Cost)
	} else {
		log.Warn("posting failed", "kind", a.out.Kind, "error", a.out.ErrorMessage)
	}
	return a.out
}

func (a *attempt) fail(kind domain.FailureKind, msg string) {
	a.out.Success = false
	a.out.Kind = kind
	a.out.ErrorMessage = msg
}

func (e *Executor) runStrategy(ctx context.Context, a *attempt, st strategy.Strategy) {
	if err := st.Login(ctx, a.sess); err != nil {
		a.fail(domain.FailureAutomation, "login: "+err.Error())
		return
	}
	if err := a.sess.Navigate(ctx, a.board.PostURL); err != nil {
		a.fail(domain.FailureAutomation, err.Error())
		return
	}
	if err := st.FillForm(ctx, a.sess, a.job); err != nil {
		a.fail(domain.FailureAutomation, err.Error())
		return
	}
	submitted := time.Now()
	if err := st.Submit(ctx, a.sess); err != nil {
		a.fail(domain.FailureAutomation, "submit: "+err.Error())
		return
	}
	e.settle(ctx, a, st.Verify(ctx, a.sess, a.board.PostURL), submitted)
}

func (e *Executor) runDiscovery(ctx context.Context, a *attempt) {
	a.out.Discovered = true
	if err := a.sess.Navigate(ctx, a.board.PostURL); err != nil {
		a.fail(domain.FailureAutomation, err.Error())
		return
	}
	html, err := a.sess.HTML(ctx)
	if err != nil {
		a.fail(domain.FailureAutomation, "read page: "+err.Error())
		return
	}

	res := e.discovery.Discover(ctx, html, a.board.PostURL, a.board.Name)
	a.out.Cost = res.Cost
	if res.OverCeiling {
		if e.opts.AbortOverCeiling {
			a.fail(domain.FailureDiscovery, fmt.Sprintf("discovery cost %.4f over ceiling", res.Cost))
			return
		}
		a.log.Warn("discovery over cost ceiling, proceeding", "cost", res.Cost)
	}
	if !res.Success {
		a.fail(domain.FailureDiscovery, "form discovery failed: "+res.Error)
		return
	}

	plan, ok := e.plan(res, a.job)
	if !ok {
		a.log.Info("form not found", "confidence", res.Confidence, "fields", len(res.Fields))
		a.fail(domain.FailureDiscovery, MsgFormNotFound)
		return
	}

	for _, f := range plan.fills {
		if err := a.sess.Fill(ctx, f.Selector, a.job.FieldValue(f.Role)); err != nil {
			a.fail(domain.FailureAutomation, fmt.Sprintf("fill %s: %v", f.Role, err))
			return
		}
	}
	submitted := time.Now()
	if err := a.sess.Click(ctx, plan.submit.Selector); err != nil {
		a.fail(domain.FailureAutomation, "submit: "+err.Error())
		return
	}
	v := strategy.Verifier{Board: a.board, Wait: e.opts.SubmitWait, Poll: e.opts.Poll}
	e.settle(ctx, a, v.Verify(ctx, a.sess, a.board.PostURL), submitted)
}

type fillPlan struct {
	fills  []domain.FieldCandidate
	submit domain.FieldCandidate
}

// plan gates a discovery result: below MinConfidence nothing is touched,
// fields below FieldFloor are skipped, and a submit target plus at least
// one fillable field are required.
func (e *Executor) plan(res discovery.Result, job domain.Job) (fillPlan, bool) {
	var p fillPlan
	if res.Confidence < e.opts.MinConfidence {
		return p, false
	}
	seen := map[domain.FieldRole]bool{}
	for _, f := range res.Fields {
		if f.Confidence < e.opts.FieldFloor {
			continue
		}
		switch f.Role {
		case domain.RoleSubmit:
			if f.Confidence > p.submit.Confidence {
				p.submit = f
			}
		case domain.RoleOther:
		default:
			if seen[f.Role] || job.FieldValue(f.Role) == "" {
				continue
			}
			seen[f.Role] = true
			p.fills = append(p.fills, f)
		}
	}
	return p, p.submit.Selector != "" && len(p.fills) > 0
}

// settle turns a page verdict into the outcome, consulting the mailbox when
// the page alone is not decisive.
func (e *Executor) settle(ctx context.Context, a *attempt, vd strategy.Verdict, submitted time.Time) {
	switch vd.Kind {
	case strategy.Succeeded:
		a.out.Success = true
		a.out.ExternalURL = vd.ExternalURL
		return
	case strategy.Rejected:
		a.fail(domain.FailureAutomation, vd.Reason)
		return
	}

	if rule := a.board.ConfirmEmail; rule != nil && e.confirm != nil {
		ok, err := e.confirm.AwaitConfirmation(ctx, *rule, submitted)
		if err != nil {
			a.log.Warn("email confirmation check failed", "error", err)
		}
		if ok {
			a.out.Success = true
			return
		}
	}
	a.fail(domain.FailureAutomation, strategy.StatusUnclear)
}

func (e *Executor) screenshot(ctx context.Context, a *attempt) []byte {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.StepTimeout)
	defer cancel()
	shot, err := a.sess.Screenshot(ctx)
	if err != nil {
		a.log.Debug("screenshot failed", "error", err)
		return nil
	}
	return shot
}
