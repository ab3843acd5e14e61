package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/db"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/store"
)

var initAdmCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the nestmig database",
	Long: `Initialize creates the SQLite database, runs migrations and, for a new
database, creates the index item of the home space so top-level index
items have a parent to point at.

With --fixture the given YAML fixture is loaded after initialization.`,
	Args: cobra.NoArgs,
	RunE: runInitAdm,
}

var initAdmFixture string

func init() {
	rootAdmCmd.AddCommand(initAdmCmd)

	initAdmCmd.Flags().StringVar(&initAdmFixture, "fixture", "", "YAML fixture to load after initialization")
}

func runInitAdm(cmd *cobra.Command, args []string) error {
	app, err := appctx.Bootstrap(cmd, appctx.ConfigOnly())
	if err != nil {
		return exitError(ExitGeneric, err)
	}
	defer app.Close()
	cfg := app.Config

	// Check if database already exists
	dbExists := false
	if _, err := os.Stat(cfg.DBPath); err == nil {
		dbExists = true
	}

	// Open database (creates file if it doesn't exist)
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return exitError(ExitGeneric, fmt.Errorf("failed to open database: %w", err))
	}
	app.DB = database
	app.Store = store.New(database, app.Actor)

	if err := database.Migrate(); err != nil {
		return exitError(ExitGeneric, fmt.Errorf("failed to run migrations: %w", err))
	}

	out := cmd.OutOrStdout()
	if dbExists {
		fmt.Fprintf(out, "✓ Database already initialized at %s\n", cfg.DBPath)
		fmt.Fprintf(out, "✓ Migrations applied\n")
	} else {
		home := paths.NewSpace(cfg.Namespace, cfg.HomeSpace).Index()
		if err := ensureItem(cmd, app.Store, home); err != nil {
			return exitError(ExitGeneric, fmt.Errorf("failed to seed database: %w", err))
		}
		fmt.Fprintf(out, "✓ Initialized new database at %s\n", cfg.DBPath)
		fmt.Fprintf(out, "✓ Created home index %s\n", home)
	}

	if initAdmFixture != "" {
		res, err := loadFixtureFile(cmd, app, initAdmFixture)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Loaded %d item(s) from %s\n", res.Items, initAdmFixture)
	}
	return nil
}

func ensureItem(cmd *cobra.Command, s *store.Store, p paths.Path) error {
	_, err := s.Items.Get(cmd.Context(), p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.Items.Create(cmd.Context(), store.ItemCreateParams{Path: p, Creator: s.Actor()})
}
