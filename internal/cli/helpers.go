package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/config"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/snapshot"
)

// Exit codes
const (
	ExitGeneric    = 1
	ExitUsage      = 2
	ExitNotFound   = 3
	ExitStructural = 4
	ExitFailures   = 5
)

// ExitError carries the process exit code for an error
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var structural *domain.StructuralError
	var selection *domain.SelectionError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &structural):
		return ExitStructural
	case errors.As(err, &selection):
		return ExitGeneric
	case isUsageError(err):
		return ExitUsage
	}
	return ExitGeneric
}

// cobra reports flag and argument problems as plain errors
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown flag", "unknown shorthand flag", "unknown command", "accepts ", "requires at least", "requires at most", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// migrationFlags are shared by the commands that select and plan items
type migrationFlags struct {
	configPath       string
	dontMoveChildren bool
	noRedirect       bool
	disable          []string
}

func (f *migrationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Migration config file (YAML)")
	cmd.Flags().BoolVar(&f.dontMoveChildren, "dont-move-children", false, "Convert terminal items in place instead of nesting them")
	cmd.Flags().BoolVar(&f.noRedirect, "no-redirect", false, "Do not leave redirect stubs behind moved items")
	cmd.Flags().StringSliceVar(&f.disable, "disable", nil, "Disable per-action keys (<source>_page, <source>_preference_<i>, <source>_right_<i>)")
}

// load reads the migration config and applies flag overrides
func (f *migrationFlags) load(cmd *cobra.Command, cfg *config.Config) (config.Migration, error) {
	m, err := config.LoadMigration(f.configPath, cfg.Namespace)
	if err != nil {
		return m, exitError(ExitUsage, err)
	}
	if cmd.Flags().Changed("namespace") {
		m.Namespace = cfg.Namespace
	}
	if f.dontMoveChildren {
		m.DontMoveChildren = true
	}
	if f.noRedirect {
		m.AutoRedirect = false
	}
	for _, key := range f.disable {
		m.DisableAction(key)
	}
	if err := m.Validate(); err != nil {
		return m, exitError(ExitUsage, err)
	}
	return m, nil
}

// loadedPlan is a plan document together with where it came from
type loadedPlan struct {
	Doc    *snapshot.Document
	Record *domain.PlanRecord // nil when read from a file
}

// Name returns a short label for diffs and messages
func (p *loadedPlan) Name() string {
	if p.Record != nil {
		return "plan/" + p.Record.UUID
	}
	return "file"
}

// resolvePlan loads a plan by id or id prefix, from a file path, or the
// latest plan of the namespace when ref is empty.
func resolvePlan(ctx context.Context, app *appctx.App, ref string) (*loadedPlan, error) {
	if ref != "" {
		if _, err := os.Stat(ref); err == nil {
			doc, err := snapshot.ReadFile(ref)
			if err != nil {
				return nil, exitError(ExitStructural, err)
			}
			return &loadedPlan{Doc: doc}, nil
		}
	}

	var (
		rec *domain.PlanRecord
		err error
	)
	if ref == "" {
		rec, err = app.Store.Plans.Latest(ctx, app.Config.Namespace)
	} else {
		rec, err = app.Store.Plans.Get(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if ref == "" {
				return nil, exitError(ExitNotFound, fmt.Errorf("no plan in namespace %s", app.Config.Namespace))
			}
			return nil, exitError(ExitNotFound, fmt.Errorf("plan %s: %w", ref, err))
		}
		return nil, err
	}

	doc, err := snapshot.Decode([]byte(rec.Document))
	if err != nil {
		return nil, exitError(ExitStructural, fmt.Errorf("failed to decode plan %s: %w", rec.UUID, err))
	}
	return &loadedPlan{Doc: doc, Record: rec}, nil
}

// namespaceOf returns the namespace a plan document was built for
func namespaceOf(doc *snapshot.Document, fallback string) string {
	if doc.Meta.Namespace != "" {
		return doc.Meta.Namespace
	}
	return fallback
}
