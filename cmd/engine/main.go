package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

const (
	flagDataDir   = "data-dir"
	flagDefaults  = "defaults"
	flagLogLevel  = "log-level"
	flagListen    = "listen"
	flagAPI       = "api"
	flagSubject   = "subject"
	flagTTL       = "ttl"
	flagAll       = "all"
	flagNormalize = "normalize"
)

var version = "dev"

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    flagDataDir,
		Usage:   "Directory holding config, database, screenshots and the engine lock.",
		Value:   ".",
		EnvVars: []string{"POSTJOB_DATA_DIR"},
	},
	&cli.StringFlag{
		Name:    flagDefaults,
		Usage:   "Default config copied into the data dir on first start.",
		Value:   "config/config.yml",
		EnvVars: []string{"POSTJOB_DEFAULT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    flagLogLevel,
		Usage:   "Log level override (trace, debug, info, warn, error).",
		EnvVars: []string{"POSTJOB_LOG_LEVEL"},
	},
}

var apiFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    flagAPI,
		Usage:   "Base URL of a running engine.",
		EnvVars: []string{"POSTJOB_API"},
	},
}

var commands = []*cli.Command{
	{
		Name:  "serve",
		Usage: "Run the posting engine and its HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagListen,
				Usage:   "Listen address; defaults to 127.0.0.1:<app.port>.",
				EnvVars: []string{"POSTJOB_LISTEN"},
			},
		},
		Action: runServe,
	},
	{
		Name:      "enqueue",
		Usage:     "Queue a stored job on a running engine",
		ArgsUsage: "<job-id>",
		Flags:     apiFlags,
		Action:    runEnqueue,
	},
	{
		Name:      "retry",
		Usage:     "Reset a failed posting to pending and queue its job",
		ArgsUsage: "<posting-id>",
		Flags:     apiFlags,
		Action:    runRetry,
	},
	{
		Name:  "boards",
		Usage: "List the board catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagAll, Usage: "Include disabled boards."},
		},
		Action: runBoards,
	},
	{
		Name:  "token",
		Usage: "Mint an operator token signed with POSTJOB_JWT_SECRET",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagSubject, Usage: "Token subject.", Value: "operator"},
			&cli.DurationFlag{Name: flagTTL, Usage: "Token lifetime.", Value: defaultTokenTTL},
		},
		Action: runToken,
	},
	{
		Name:  "check",
		Usage: "Validate the config and board catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagNormalize, Usage: "Write the normalized config back to disk."},
		},
		Action: runCheck,
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "engine",
		Usage:    "post one job to many boards",
		Version:  version,
		Flags:    globalFlags,
		Commands: commands,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
