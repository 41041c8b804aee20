package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser/browsertest"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/secrets"
)

type staticCreds struct {
	c   secrets.Credentials
	err error
}

func (s staticCreds) BoardCredentials(string) (secrets.Credentials, error) { return s.c, s.err }

const postURL = "https://board.example/jobs/new"

func selectorBoard() domain.Board {
	return domain.Board{
		ID:      "a",
		PostURL: postURL,
		Enabled: true,
		Selectors: map[string]string{
			"title":       "#title",
			"description": "#desc",
			"location":    "#loc",
			"salary":      "#salary",
			"submit":      "#submit",
		},
	}
}

var testJob = domain.Job{
	ID:          "j1",
	Title:       "Backend Engineer",
	Description: "Build things",
	Company:     "Acme",
	Location:    "Berlin",
}

func testDeps() Deps {
	return Deps{SubmitWait: 50 * time.Millisecond, Poll: 5 * time.Millisecond}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(testDeps())

	st, err := r.Resolve(selectorBoard())
	require.NoError(t, err)
	assert.IsType(t, &Selector{}, st)

	st, err = r.Resolve(domain.Board{ID: "b", PostURL: postURL})
	require.NoError(t, err)
	assert.Nil(t, st, "no selectors means discovery")

	forced := selectorBoard()
	forced.Strategy = NameDiscovery
	st, err = r.Resolve(forced)
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = r.Resolve(domain.Board{ID: "c", Strategy: "bespoke"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

type bespoke struct{ Base }

func (bespoke) FillForm(context.Context, browser.Session, domain.Job) error { return nil }
func (bespoke) Submit(context.Context, browser.Session) error               { return nil }

func TestRegistry_CustomFactoryFreshPerResolve(t *testing.T) {
	r := NewRegistry(testDeps())
	built := 0
	r.Register("bespoke", func(b domain.Board, d Deps) (Strategy, error) {
		built++
		base, err := NewBase(b, d)
		return &bespoke{base}, err
	})
	b := domain.Board{ID: "c", Strategy: "bespoke", PostURL: postURL}
	s1, err := r.Resolve(b)
	require.NoError(t, err)
	s2, err := r.Resolve(b)
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, built)
	assert.Equal(t, []string{"bespoke", "selector"}, r.Names())
}

func TestSelector_FillFormInOrderSkippingEmpty(t *testing.T) {
	st, err := NewSelector(selectorBoard(), testDeps())
	require.NoError(t, err)
	s := &browsertest.Session{}

	require.NoError(t, st.FillForm(context.Background(), s, testJob))
	fills := s.Calls("fill")
	require.Len(t, fills, 3)
	assert.Equal(t, "#title", fills[0].Selector)
	assert.Equal(t, "Backend Engineer", fills[0].Value)
	assert.Equal(t, "#loc", fills[1].Selector)
	assert.Equal(t, "#desc", fills[2].Selector)

	require.NoError(t, st.Submit(context.Background(), s))
	assert.Equal(t, "#submit", s.Calls("click")[0].Selector)
}

func TestSelector_FillErrorStops(t *testing.T) {
	st, err := NewSelector(selectorBoard(), testDeps())
	require.NoError(t, err)
	s := &browsertest.Session{FailOn: map[string]string{"fill": "#loc"}}

	err = st.FillForm(context.Background(), s, testJob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill location")
	assert.Len(t, s.Calls("fill"), 2)
}

func TestNewSelector_NeedsSubmit(t *testing.T) {
	b := selectorBoard()
	delete(b.Selectors, "submit")
	_, err := NewSelector(b, testDeps())
	assert.Error(t, err)
}

func TestCredentialLogin(t *testing.T) {
	b := selectorBoard()
	b.Login = domain.LoginConfig{
		Mode:             domain.LoginCredentials,
		URL:              "https://board.example/login",
		UsernameSelector: "#u",
		PasswordSelector: "#p",
		SubmitSelector:   "#go",
		LoggedInSelector: ".avatar",
	}
	deps := testDeps()
	deps.Credentials = staticCreds{c: secrets.Credentials{Username: "hr@acme.test", Password: "pw"}}
	st, err := NewSelector(b, deps)
	require.NoError(t, err)

	s := &browsertest.Session{Pages: map[string]browsertest.Page{
		"https://board.example/login": {Present: []string{".avatar"}},
	}}
	require.NoError(t, st.Login(context.Background(), s))

	calls := s.Calls("navigate", "fill", "click")
	require.Len(t, calls, 4)
	assert.Equal(t, "https://board.example/login", calls[0].Value)
	assert.Equal(t, "hr@acme.test", calls[1].Value)
	assert.Equal(t, "#go", calls[3].Selector)
}

func TestCredentialLogin_NoCredentials(t *testing.T) {
	b := selectorBoard()
	b.Login = domain.LoginConfig{Mode: domain.LoginCredentials}
	deps := testDeps()
	deps.Credentials = staticCreds{err: secrets.ErrNoCredentials}
	st, err := NewSelector(b, deps)
	require.NoError(t, err)

	err = st.Login(context.Background(), &browsertest.Session{})
	assert.ErrorIs(t, err, secrets.ErrNoCredentials)
}

func TestSessionLogin(t *testing.T) {
	b := selectorBoard()
	b.BaseURL = "https://board.example"
	b.Login = domain.LoginConfig{Mode: domain.LoginSession, LoggedInSelector: ".menu"}
	st, err := NewSelector(b, testDeps())
	require.NoError(t, err)

	in := &browsertest.Session{Pages: map[string]browsertest.Page{"https://board.example": {Present: []string{".menu"}}}}
	assert.NoError(t, st.Login(context.Background(), in))

	out := &browsertest.Session{}
	assert.ErrorIs(t, st.Login(context.Background(), out), ErrNotLoggedIn)
}

func TestNewLogin_UnknownMode(t *testing.T) {
	_, err := NewLogin(domain.Board{ID: "x", Login: domain.LoginConfig{Mode: "oauth"}}, nil)
	assert.Error(t, err)
}

func TestVerifier(t *testing.T) {
	board := domain.Board{
		ID:              "a",
		SuccessSelector: ".posted",
		SuccessTexts:    []string{"listing is pending review"},
		ErrorTexts:      []string{"can't be blank"},
	}
	v := Verifier{Board: board, Wait: 40 * time.Millisecond, Poll: 5 * time.Millisecond}

	tests := []struct {
		name     string
		url      string
		page     browsertest.Page
		want     VerdictKind
		external string
	}{
		{"error text wins over url change", "https://board.example/jobs/7", browsertest.Page{Text: "Title can't be blank"}, Rejected, ""},
		{"success text", postURL, browsertest.Page{Text: "Your listing is pending review"}, Succeeded, ""},
		{"default success text", postURL, browsertest.Page{Text: "Job has been posted!"}, Succeeded, ""},
		{"success selector", postURL, browsertest.Page{Present: []string{".posted"}}, Succeeded, ""},
		{"url moved away", "https://board.example/jobs/42", browsertest.Page{}, Succeeded, "https://board.example/jobs/42"},
		{"static field helper is not an error", "https://board.example/jobs/42", browsertest.Page{Text: "Title * This field is required"}, Succeeded, "https://board.example/jobs/42"},
		{"query change is same page", postURL + "?step=2#top", browsertest.Page{}, Unclear, ""},
		{"nothing decisive", postURL, browsertest.Page{Text: "Loading..."}, Unclear, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &browsertest.Session{Pages: map[string]browsertest.Page{tt.url: tt.page}}
			s.Goto(tt.url)
			vd := v.Verify(context.Background(), s, postURL)
			assert.Equal(t, tt.want, vd.Kind, vd.Reason)
			assert.Equal(t, tt.external, vd.ExternalURL)
			if tt.want == Unclear {
				assert.Equal(t, StatusUnclear, vd.Reason)
			}
		})
	}
}

func TestVerifier_FieldHelperRejectsOnlyWhenBoardNamesIt(t *testing.T) {
	page := browsertest.Page{Text: "Title * This field is required"}
	s := &browsertest.Session{Pages: map[string]browsertest.Page{postURL: page}}
	s.Goto(postURL)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.Navigate(context.Background(), "https://board.example/jobs/9")
	}()
	vd := Verifier{Wait: time.Second, Poll: 2 * time.Millisecond}.Verify(context.Background(), s, postURL)
	assert.Equal(t, Succeeded, vd.Kind, vd.Reason)

	strict := domain.Board{ID: "a", ErrorTexts: []string{"this field is required"}}
	s = &browsertest.Session{Pages: map[string]browsertest.Page{postURL: page}}
	s.Goto(postURL)
	vd = Verifier{Board: strict, Wait: 40 * time.Millisecond, Poll: 5 * time.Millisecond}.Verify(context.Background(), s, postURL)
	assert.Equal(t, Rejected, vd.Kind)
}

func TestVerifier_SeesLateConfirmation(t *testing.T) {
	s := &browsertest.Session{Pages: map[string]browsertest.Page{"https://board.example/done": {}}}
	s.Goto(postURL)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.Navigate(context.Background(), "https://board.example/done")
	}()
	vd := Verifier{Wait: time.Second, Poll: 2 * time.Millisecond}.Verify(context.Background(), s, postURL)
	assert.Equal(t, Succeeded, vd.Kind)
}

func TestSamePage(t *testing.T) {
	assert.True(t, samePage("https://A.example/post/", "https://a.example/post"))
	assert.False(t, samePage("https://a.example/post/1", "https://a.example/post"))
}
