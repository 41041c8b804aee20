package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
)

// loadConfig bootstraps the user config into the data dir, loads it with
// env overrides and validates it.
func loadConfig(c *cli.Context) (config.Config, string, error) {
	dataDir := c.String(flagDataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return config.Config{}, "", err
	}
	userCfgPath, err := config.EnsureUserConfig(dataDir, c.String(flagDefaults))
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	cfg.App.DataDir = dataDir
	if lvl := c.String(flagLogLevel); lvl != "" {
		cfg.App.LogLevel = lvl
	}

	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		fmt.Fprintln(os.Stderr, "config warning:", w)
	}
	if !vr.OK() {
		return config.Config{}, "", vr.Err()
	}
	return cfg, userCfgPath, nil
}

// boardsPath resolves the catalog next to the user config, seeding it from
// the defaults directory on first start.
func boardsPath(c *cli.Context, cfg config.Config) (string, error) {
	if filepath.IsAbs(cfg.BoardsFile) {
		return cfg.BoardsFile, nil
	}
	def := filepath.Join(filepath.Dir(c.String(flagDefaults)), cfg.BoardsFile)
	return config.EnsureUserConfig(cfg.App.DataDir, def)
}

func loadCatalog(c *cli.Context, cfg config.Config) (*config.Catalog, error) {
	path, err := boardsPath(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("boards bootstrap failed: %w", err)
	}
	return config.LoadBoards(path)
}

func newLogger(cfg config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "postjob",
		Level:      hclog.LevelFromString(cfg.App.LogLevel),
		JSONFormat: cfg.App.LogJSON,
		Output:     os.Stderr,
	})
}
