// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup, database opening and actor
// resolution to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/config"
	"github.com/lherron/nestmig/internal/db"
	"github.com/lherron/nestmig/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Logger writes structured logs to stderr
	Logger *slog.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB (nil if NeedsDB is false)
	Store *store.Store

	// Actor is the name recorded on events
	Actor string
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// SkipMigrationCheck opens the database even with pending migrations.
	SkipMigrationCheck bool
}

// DefaultOptions returns default options (DB required).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// ConfigOnly returns options that skip opening the database.
func ConfigOnly() Options {
	return Options{}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Flags win over environment and files
	if v := flagValue(cmd, "db"); v != "" {
		app.Config.DBPath = v
	}
	if v := flagValue(cmd, "namespace"); v != "" {
		app.Config.Namespace = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		app.Config.LogLevel = v
	}

	logger, err := config.NewLogger(cmd.ErrOrStderr(), app.Config.LogLevel, app.Config.LogFormat)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	app.Actor = flagValue(cmd, "as")
	if app.Actor == "" {
		app.Actor = app.Config.GetActor()
	}

	// Open database if needed
	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		if !opts.SkipMigrationCheck {
			if err := database.RequiresMigrationError(); err != nil {
				database.Close()
				return nil, err
			}
		}

		app.DB = database
		app.Store = store.New(database, app.Actor)
	}

	return app, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
