package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"classcal/internal/clock"
	"classcal/internal/config"
	appLog "classcal/internal/log"
	"classcal/internal/store"
	"classcal/internal/timetable"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "classcal",
		Usage:   "Weekly class timetable: expand, lay out and serve recurring sessions.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./classcal.yaml",
				EnvVars: []string{"CLASSCAL_CONFIG"},
				Usage:   "Path to config file (created with defaults if missing)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Usage:   "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			dayCommand(),
			weekCommand(),
			monthCommand(),
			nowCommand(),
			exportCommand(),
			importCommand(),
			captureCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		appLog.Error("classcal failed", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: config, clock, store and service.
type env struct {
	configPath string
	cfg        *config.Config
	clock      *clock.Clock
	store      store.Store
	svc        *timetable.Service
}

func (e *env) Close() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

// setup loads the config, applies logging settings and opens the store.
// opts are applied to the clock, e.g. a fixed "now" for --at.
func setup(c *cli.Context, opts ...clock.Option) (*env, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", path)
		return nil, err
	}
	applyLogConfig(cfg.Log, c.String("log-level"))

	clk, err := clock.Load(cfg.Timezone, opts...)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"lookahead_days", cfg.LookaheadDays,
		"store_driver", cfg.Store.Driver,
		"store_path", cfg.Store.Path,
	)

	return &env{
		configPath: path,
		cfg:        cfg,
		clock:      clk,
		store:      st,
		svc:        timetable.NewService(st, clk, cfg.LookaheadDays),
	}, nil
}

func applyLogConfig(lc config.LogConfig, override string) {
	level := lc.Level
	if override != "" {
		level = override
	}
	appLog.SetOutput(os.Stderr, lc.Format)
	appLog.SetLevel(appLog.ParseLevel(level))
}
