// Package cli wires configuration, logging and the data gateway into the
// accomplish command tree.
package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/credential"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/gateway/supabase"
	"github.com/nhle/accomplishment-tracker/internal/logging"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
	"github.com/nhle/accomplishment-tracker/internal/store"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in; run `accomplish login` first")

// App holds the persistent flag state shared by every command.
type App struct {
	ConfigPath string
	Verbose    bool

	// sessions opens the store that keeps the hosted session between runs.
	sessions func() (session.Store, error)
}

// NewRootCmd builds the accomplish command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{
		sessions: func() (session.Store, error) { return credential.NewSessionStore() },
	})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "accomplish",
		Short:        "Track your professional accomplishments",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  accomplish

  # Sign in, then serve the web dashboard
  accomplish login --email me@example.com --password ...
  accomplish serve --addr localhost:3000

  # Export everything to CSV
  accomplish export --out accomplishments.csv
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", model.DefaultConfigPath(), "Path to the config file")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

// env is the resolved runtime for one command invocation.
type env struct {
	cfg     *model.AppConfig
	log     *zap.Logger
	tracker analytics.Tracker
	gw      gateway.Gateway
	// factory builds a gateway around a request-scoped session store.
	factory func(session.Store) gateway.Gateway
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("closing resource failed", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

// open loads the config and builds the logger and gateway it selects.
func (app *App) open(mode logging.Mode) (*env, error) {
	cfg, err := model.LoadConfig(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", app.ConfigPath, err)
	}

	log, err := logging.New(cfg.Log, app.Verbose, mode)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:     cfg,
		log:     log,
		tracker: analytics.NewLogTracker(log),
	}

	switch cfg.Backend.Driver {
	case model.DriverSQLite:
		st, err := store.NewSQLiteStore(cfg.Backend.SQLitePath,
			store.WithLogger(log),
			store.WithPollInterval(time.Duration(cfg.Backend.PollIntervalSec)*time.Second),
		)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
		local := store.LocalGateway{
			SQLiteStore: st,
			LocalAuth:   store.NewLocalAuth(st, cfg.Backend.LocalViewer),
		}
		e.gw = local
		e.factory = func(session.Store) gateway.Gateway { return local }
		e.closers = append(e.closers, st.Close)

	default:
		sessions, err := app.sessions()
		if err != nil {
			_ = log.Sync()
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		backend := cfg.Backend
		e.gw = supabase.New(backend, sessions, supabase.WithLogger(log))
		e.factory = func(s session.Store) gateway.Gateway {
			return supabase.New(backend, s, supabase.WithLogger(log))
		}
	}

	log.Debug("backend opened",
		zap.String("driver", cfg.Backend.Driver),
		zap.String("config", app.ConfigPath),
	)
	return e, nil
}
