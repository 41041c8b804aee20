package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/httpapi"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/scheduler"
)

func runServe(c *cli.Context) error {
	cfg, userCfgPath, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	// One engine per data dir: two schedulers on one store would race claims.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another engine is running on %s", cfg.App.DataDir)
	}
	defer lock.Unlock()

	catalog, err := loadCatalog(c, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg, catalog, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	rep, err := eng.sched.Recover(ctx)
	if err != nil {
		log.Error("startup recovery failed", "error", err)
	} else {
		log.Info("startup recovery", "interrupted", rep.Interrupted, "enqueued", rep.Enqueued, "finalized", rep.Finalized)
	}

	sweeper := scheduler.NewSweeper(eng.sched, cfg.Queue.SweepSpec)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	schedDone := make(chan error, 1)
	go func() { schedDone <- eng.sched.Run(ctx) }()

	router := httpapi.NewRouter(httpapi.Deps{
		Store:       eng.store,
		Queue:       eng.sched,
		Hub:         eng.hub,
		Boards:      catalog,
		Discovery:   eng.disc,
		Secrets:     eng.secrets,
		Config:      cfg,
		UserCfgPath: userCfgPath,
		JWTSecret:   []byte(cfg.API.JWTSecret),
		Log:         log,
	})
	if token := os.Getenv("POSTJOB_SHUTDOWN_TOKEN"); token != "" {
		router.Handle("/shutdown", shutdownHandler(token, stop)).Methods(http.MethodPost)
	}

	addr := c.String(flagListen)
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("engine listening", "addr", "http://"+addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		log.Error("http server failed", "error", err)
		stop()
	}

	eng.sched.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server forced to shutdown", "error", err)
	}

	select {
	case <-schedDone:
	case <-time.After(30 * time.Second):
		log.Warn("scheduler did not stop in time; interrupted postings are recovered on next start")
	}
	log.Info("engine exited cleanly")
	return nil
}
