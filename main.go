package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/commands"
	"github.com/colonyops/porter/internal/core/config"
	"github.com/colonyops/porter/internal/core/logging"
	"github.com/colonyops/porter/internal/core/netmon"
	"github.com/colonyops/porter/internal/data/db"
	"github.com/colonyops/porter/internal/data/stores"
	"github.com/colonyops/porter/internal/porter"
	"github.com/colonyops/porter/internal/remote"
	"github.com/colonyops/porter/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		porterApp = &porter.App{}
		database  *db.DB
		monitor   *netmon.Monitor
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "porter",
		Usage:     "Offline-first personal task manager",
		UsageText: "porter [global options] command [command options]",
		Description: `Porter keeps your tasks in a remote store and mirrors them locally so
you can keep working without a connection. Offline writes apply to the
local snapshot immediately and queue for replay; once connectivity
returns they are applied to the remote store exactly once, in order.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("PORTER_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/porter.log)",
				Sources:     cli.EnvVars("PORTER_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PORTER_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("PORTER_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/porter.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "porter.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile, logging.ContextHook{})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return ctx, fmt.Errorf("create data dir: %w", err)
			}

			// Open database connection, recovering from a corrupted file
			dbOpts := db.OpenOptions{
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
				BusyTimeout:  cfg.Database.BusyTimeout,
			}
			database, err = db.Open(cfg.DataDir, dbOpts)
			if err != nil && stores.IsCorruptionError(err) {
				log.Warn().Err(err).Msg("local database corrupted, starting fresh")
				if recErr := stores.RecoverFromCorruption(cfg.DataDir); recErr != nil {
					return ctx, fmt.Errorf("recover database: %w", recErr)
				}
				database, err = db.Open(cfg.DataDir, dbOpts)
			}
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			kvStore := stores.NewKVStore(database)

			source := remote.NewHTTPSource(remote.HTTPConfig{
				BaseURL:      cfg.Remote.BaseURL,
				Token:        cfg.Remote.Token,
				PollInterval: cfg.Remote.PollInterval,
			}, log.Logger)

			monitor = netmon.New(
				netmon.HTTPProbe(source.HealthURL()),
				netmon.Options{
					ProbeInterval: cfg.Sync.ProbeInterval,
					Debounce:      cfg.Sync.Debounce,
				},
				log.Logger,
			)

			queue := porter.NewQueue(kvStore, log.Logger)
			if err := queue.Load(ctx); err != nil {
				return ctx, fmt.Errorf("load mutation queue: %w", err)
			}

			rec := porter.NewReconciler(queue, source, cfg.Sync.WriteTimeout, log.Logger)

			repo := porter.NewRepository(source, queue, rec, monitor, kvStore, cfg.Remote.OwnerID, log.Logger)
			if err := repo.Load(ctx); err != nil {
				return ctx, fmt.Errorf("load task snapshot: %w", err)
			}

			*porterApp = *porter.NewApp(repo, queue, rec, monitor, source, cfg, database)

			return logging.WithOwnerID(ctx, cfg.Remote.OwnerID), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if porterApp.Repository != nil {
				porterApp.Repository.Close()
			}
			if monitor != nil {
				monitor.Close()
			}
			if database != nil {
				if err := database.Close(); err != nil {
					log.Warn().Err(err).Msg("close database")
				}
			}
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewAddCmd(flags, porterApp).Register(app)
	app = commands.NewLsCmd(flags, porterApp).Register(app)
	app = commands.NewDoneCmd(flags, porterApp).Register(app)
	app = commands.NewEditCmd(flags, porterApp).Register(app)
	app = commands.NewRmCmd(flags, porterApp).Register(app)
	app = commands.NewStatusCmd(flags, porterApp).Register(app)
	app = commands.NewSyncCmd(flags, porterApp).Register(app)
	app = commands.NewWatchCmd(flags, porterApp).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
