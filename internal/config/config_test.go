package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yml", `
app:
  port: 9000
queue:
  max_concurrent_posts: 5
  backoff_base: 45s
discovery:
  primary: heuristic
  fallback: ""
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrentPosts)
	assert.Equal(t, 45*time.Second, cfg.Queue.BackoffBase)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 0.7, cfg.Discovery.MinConfidence)
	assert.Equal(t, "heuristic", cfg.Discovery.Primary)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("POSTJOB_PORT", "4000")
	t.Setenv("POSTJOB_COST_CEILING", "0.05")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("POSTJOB_JWT_SECRET", "s3cret")

	cfg := Default()
	cfg.Discovery.Providers = map[string]ProviderConfig{"openai": {Model: "gpt-4o-mini"}}
	ApplyEnv(&cfg)

	assert.Equal(t, 4000, cfg.App.Port)
	assert.Equal(t, 0.05, cfg.Discovery.CostCeiling)
	assert.Equal(t, "sk-test", cfg.Discovery.Providers["openai"].APIKey)
	assert.Equal(t, "s3cret", cfg.API.JWTSecret)
}

func TestNormalizeAndValidate(t *testing.T) {
	valid := Default()
	valid.Discovery.Primary = "heuristic"
	valid.Discovery.Fallback = ""

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		warn    bool
	}{
		{"defaults with heuristic", func(c *Config) {}, false, false},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, true, false},
		{"postgres needs dsn", func(c *Config) { c.Store.Driver = "Postgres" }, true, false},
		{"zero concurrency", func(c *Config) { c.Queue.MaxConcurrentPosts = 0 }, true, false},
		{"high concurrency warns", func(c *Config) { c.Queue.MaxConcurrentPosts = 20 }, false, true},
		{"unknown provider", func(c *Config) { c.Discovery.Primary = "llama" }, true, false},
		{"missing provider block", func(c *Config) { c.Discovery.Primary = "openai" }, true, false},
		{"confidence out of range", func(c *Config) { c.Discovery.MinConfidence = 1.5 }, true, false},
		{"pace inverted", func(c *Config) { c.Browser.PaceMax = time.Millisecond }, true, false},
		{"email needs host", func(c *Config) { c.Email.Enabled = true; c.Email.Username = "me" }, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			_, v := NormalizeAndValidate(c)
			assert.Equal(t, tt.wantErr, !v.OK(), "errors: %v", v.Errors)
			if tt.warn {
				assert.NotEmpty(t, v.Warnings)
			}
		})
	}
}

func TestNormalizeAndValidate_LowercasesDriver(t *testing.T) {
	c := Default()
	c.Discovery.Primary = "heuristic"
	c.Store.Driver = " SQLite "
	out, v := NormalizeAndValidate(c)
	require.True(t, v.OK(), v.Errors)
	assert.Equal(t, "sqlite", out.Store.Driver)
}

func TestSaveAtomic_KeepsBackup(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")

	c := Default()
	c.Discovery.Primary = "heuristic"
	require.NoError(t, SaveAtomic(p, c))

	c.App.Port = 5555
	require.NoError(t, SaveAtomic(p, c))

	_, err := os.Stat(p + ".bak")
	require.NoError(t, err)

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 5555, got.App.Port)
	assert.Equal(t, 30*time.Second, got.Queue.BackoffBase)
}

func TestSaveAtomic_RejectsInvalid(t *testing.T) {
	c := Default()
	c.Store.Driver = "nope"
	err := SaveAtomic(filepath.Join(t.TempDir(), "config.yml"), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestEnsureUserConfig(t *testing.T) {
	src := writeFile(t, t.TempDir(), "config.yml", "app:\n  port: 1234\n")
	dataDir := filepath.Join(t.TempDir(), "data")

	p, err := EnsureUserConfig(dataDir, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), p)

	// an existing user copy is never overwritten
	require.NoError(t, os.WriteFile(p, []byte("app:\n  port: 1\n"), 0o644))
	_, err = EnsureUserConfig(dataDir, src)
	require.NoError(t, err)
	b, _ := os.ReadFile(p)
	assert.Contains(t, string(b), "port: 1\n")
}

const boardsTOML = `
[[board]]
id = "indeed"
name = "Indeed"
post_url = "https://employers.indeed.com/post"
enabled = true
strategy = "selector"

  [board.selectors]
  title = "#job-title"
  submit = "button[type=submit]"

  [board.login]
  mode = "session"
  logged_in_selector = ".account-menu"

[[board]]
id = "smallboard"
post_url = "https://jobs.example.org/new"
enabled = false
`

func TestLoadBoards(t *testing.T) {
	p := writeFile(t, t.TempDir(), "boards.toml", boardsTOML)
	cat, err := LoadBoards(p)
	require.NoError(t, err)

	b, ok := cat.Board("indeed")
	require.True(t, ok)
	assert.Equal(t, domain.LoginSession, b.Login.Mode)
	assert.True(t, b.HasStaticSelectors())

	small, ok := cat.Board("smallboard")
	require.True(t, ok)
	assert.Equal(t, "smallboard", small.Name)
	assert.Equal(t, domain.LoginNone, small.Login.Mode)

	assert.Len(t, cat.All(), 2)
	require.Len(t, cat.Enabled(), 1)
	assert.Equal(t, "indeed", cat.Enabled()[0].ID)
}

func TestNewCatalog_Errors(t *testing.T) {
	_, err := NewCatalog([]domain.Board{
		{ID: "a", PostURL: "https://a.example/post"},
		{ID: "a", PostURL: "https://a.example/post"},
		{ID: "b", PostURL: "/relative"},
		{ID: "c", PostURL: "https://c.example", Login: domain.LoginConfig{Mode: domain.LoginCredentials}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")
	assert.Contains(t, err.Error(), "post_url must be absolute")
	assert.Contains(t, err.Error(), "credential login")
}
