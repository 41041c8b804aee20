package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/discovery"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/executor"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/mailcheck"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/ratelimit"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/scheduler"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/secrets"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/store"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/store/memstore"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/strategy"
)

// engine holds every long-lived component of a serve run.
type engine struct {
	store   domain.Store
	catalog *config.Catalog
	hub     *events.Hub
	redis   *events.RedisPublisher
	chrome  *browser.Chrome
	disc    *discovery.Service
	secrets *secrets.Store
	sched   *scheduler.Scheduler
}

func newEngine(ctx context.Context, cfg config.Config, catalog *config.Catalog, log hclog.Logger) (*engine, error) {
	e := &engine{catalog: catalog, hub: events.NewHub(), secrets: secrets.NewStore(cfg)}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = st

	notifier := events.Fanout{e.hub}
	if cfg.Notify.RedisURL != "" {
		rp, err := events.NewRedisPublisherFromURL(ctx, cfg.Notify.RedisURL, cfg.Notify.RedisChannel)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.redis = rp
		notifier = append(notifier, rp)
	}

	e.disc, err = newDiscovery(cfg, log)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.chrome = browser.NewChrome(browser.ChromeOptions{
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ExecPath,
		ProfileDir: cfg.Browser.ProfileDir,
		UserAgent:  cfg.Browser.UserAgent,
		NavTimeout: cfg.Browser.NavTimeout,
	}, log)

	strategies := strategy.NewRegistry(strategy.Deps{
		Credentials: e.secrets,
		SubmitWait:  cfg.Browser.SubmitWait,
		Poll:        500 * time.Millisecond,
	})

	exec := executor.New(e.chrome, catalog, strategies, e.disc, newConfirmer(cfg, e.secrets, log), executor.Options{
		StepTimeout:      cfg.Browser.StepTimeout,
		NavTimeout:       cfg.Browser.NavTimeout,
		SubmitWait:       cfg.Browser.SubmitWait,
		MinConfidence:    cfg.Discovery.MinConfidence,
		FieldFloor:       cfg.Discovery.FieldFloor,
		AbortOverCeiling: cfg.Discovery.AbortOverCeiling,
		Pacing: browser.Pacing{
			Min:   cfg.Browser.PaceMin,
			Max:   cfg.Browser.PaceMax,
			Hosts: ratelimit.NewHostLimiter(cfg.Browser.RequestsPerHost, cfg.Browser.Burst),
		},
	}, log)

	e.sched = scheduler.New(scheduler.Deps{
		Repo:     st,
		Recovery: st,
		Executor: exec,
		Driver:   e.chrome,
		Notifier: notifier,
		Shots:    store.Screenshots{Dir: filepath.Join(cfg.App.DataDir, "screenshots")},
		Log:      log,
	}, scheduler.Options{
		MaxConcurrentPosts: cfg.Queue.MaxConcurrentPosts,
		MaxAttempts:        cfg.Queue.MaxAttempts,
		BackoffBase:        cfg.Queue.BackoffBase,
		BackoffMax:         cfg.Queue.BackoffMax,
		TaskMaxAttempts:    cfg.Queue.TaskMaxAttempts,
	})
	return e, nil
}

func (e *engine) Close() error {
	var errs []error
	if e.chrome != nil {
		errs = append(errs, e.chrome.Close())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Config) (domain.Store, error) {
	if cfg.Store.Driver == "memory" {
		return memstore.New()
	}
	dsn := cfg.Store.DSN
	if cfg.Store.Driver == "sqlite" && dsn == "" {
		dsn = filepath.Join(cfg.App.DataDir, "postjob.db")
	}
	db, err := store.Open(cfg.Store.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store.NewRepository(db), nil
}

// newDiscovery builds the primary and fallback providers by name. Hosted
// providers get their own request limiter.
func newDiscovery(cfg config.Config, log hclog.Logger) (*discovery.Service, error) {
	hosted := func(name string, build func(discovery.HTTPConfig, *ratelimit.HostLimiter) discovery.Provider) func() (discovery.Provider, error) {
		return func() (discovery.Provider, error) {
			pc, ok := cfg.Discovery.Providers[name]
			if !ok {
				return nil, fmt.Errorf("discovery.providers.%s is not configured", name)
			}
			return build(discovery.HTTPConfig{
				BaseURL:     pc.BaseURL,
				Model:       pc.Model,
				APIKey:      pc.APIKey,
				MaxTokens:   pc.MaxTokens,
				InputPrice:  pc.InputPrice,
				OutputPrice: pc.OutputPrice,
				Timeout:     pc.Timeout,
			}, ratelimit.NewHostLimiter(pc.RequestsPerSecond, 1)), nil
		}
	}
	reg := discovery.Registry{
		"openai": hosted("openai", func(c discovery.HTTPConfig, l *ratelimit.HostLimiter) discovery.Provider {
			return discovery.NewOpenAI(c, l)
		}),
		"anthropic": hosted("anthropic", func(c discovery.HTTPConfig, l *ratelimit.HostLimiter) discovery.Provider {
			return discovery.NewAnthropic(c, l)
		}),
		"heuristic": func() (discovery.Provider, error) { return discovery.Heuristic{}, nil },
	}

	primary, err := reg.Build(cfg.Discovery.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := reg.Build(cfg.Discovery.Fallback)
	if err != nil {
		return nil, err
	}
	return discovery.NewService(primary, fallback, discovery.Options{
		CostCeiling:     cfg.Discovery.CostCeiling,
		MaxExcerptBytes: cfg.Discovery.MaxExcerptBytes,
	}, log), nil
}

// newConfirmer returns the IMAP checker when email confirmation is enabled
// and a password is available, nil otherwise.
func newConfirmer(cfg config.Config, sec *secrets.Store, log hclog.Logger) executor.Confirmer {
	if !cfg.Email.Enabled {
		return nil
	}
	pw, err := sec.IMAPPassword()
	if err != nil {
		log.Warn("email confirmation disabled", "error", err)
		return nil
	}
	return mailcheck.New(mailcheck.Config{
		Host:     cfg.Email.IMAPHost,
		Port:     cfg.Email.IMAPPort,
		Username: cfg.Email.Username,
		Password: pw,
		Mailbox:  cfg.Email.Mailbox,
		Wait:     cfg.Email.Wait,
		Poll:     cfg.Email.Poll,
	}, log)
}
