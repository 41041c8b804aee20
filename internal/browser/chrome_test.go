package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
)

// chromePath finds a local Chrome; tests that need one are skipped without it.
func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("POSTJOB_CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome binary found; set POSTJOB_CHROME_PATH to run")
	return ""
}

const formPage = `<html><body>
<form action="/done" method="get">
  <label for="title">Title</label><input id="title" name="title">
  <button id="go" type="submit">Post</button>
</form></body></html>`

func TestChrome_SessionOutlivesOpenContext(t *testing.T) {
	exe := chromePath(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/done" {
			fmt.Fprint(w, "<html><body>Thanks, posted</body></html>")
			return
		}
		fmt.Fprint(w, formPage)
	}))
	defer srv.Close()

	c := browser.NewChrome(browser.ChromeOptions{Headless: true, ExecPath: exe, NavTimeout: 20 * time.Second}, hclog.NewNullLogger())
	defer c.Close()

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	s, err := c.Open(openCtx)
	require.NoError(t, err)
	defer s.Close()
	cancelOpen()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/post"))
	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `id="title"`)

	ok, err := s.Exists(ctx, "#go")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Fill(ctx, "#title", "Lab Assistant"))
	require.NoError(t, s.Click(ctx, "#go"))
	require.Eventually(t, func() bool {
		u, err := s.URL(ctx)
		return err == nil && u != srv.URL+"/post"
	}, 10*time.Second, 100*time.Millisecond)

	shot, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
}

func TestChrome_OpenHonoursCancelledContext(t *testing.T) {
	exe := chromePath(t)

	c := browser.NewChrome(browser.ChromeOptions{Headless: true, ExecPath: exe}, hclog.NewNullLogger())
	defer c.Close()
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Open(ctx)
	require.Error(t, err)
}
