package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/config"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/executor"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
	"github.com/lherron/nestmig/internal/planner"
	"github.com/lherron/nestmig/internal/prefs"
	"github.com/lherron/nestmig/internal/progress"
	"github.com/lherron/nestmig/internal/render"
	"github.com/lherron/nestmig/internal/rights"
	"github.com/lherron/nestmig/internal/selectors"
	"github.com/lherron/nestmig/internal/snapshot"
	"github.com/lherron/nestmig/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan [ITEM...]",
	Short: "Compute and store a migration plan",
	Long: `Computes a migration plan for the given items, or for every candidate
of the namespace selected by the migration config when no item is given.

The plan is stored in the database and printed as a tree. Preference and
right overrides that keep effective values unchanged are computed unless
--no-prefs or --no-rights is given.

Examples:
  nestmig plan                          # plan every candidate
  nestmig plan -c migration.yaml        # selection rules from a file
  nestmig plan wiki:A/B wiki:A/C        # plan explicit items
  nestmig plan --out plan.json          # also write the document`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runPlan),
}

var (
	planMigration migrationFlags
	planNoPrefs   bool
	planNoRights  bool
	planOut       string
	planOutFormat string
	planQuiet     bool
)

func init() {
	rootCmd.AddCommand(planCmd)

	planMigration.register(planCmd)
	planCmd.Flags().BoolVar(&planNoPrefs, "no-prefs", false, "Do not compute preference overrides")
	planCmd.Flags().BoolVar(&planNoRights, "no-rights", false, "Do not compute right overrides")
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "Also write the plan document to this file")
	planCmd.Flags().StringVar(&planOutFormat, "format", "json", "Format of --out: json, canonical, yaml")
	planCmd.Flags().BoolVarP(&planQuiet, "quiet", "q", false, "Print only the plan id")
}

func runPlan(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := planMigration.load(cmd, app.Config)
	if err != nil {
		return err
	}
	outFormat, err := snapshot.ParseFormat(planOutFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	var selected []paths.Path
	if len(args) > 0 {
		selected, err = selectors.ParseItems(args, m.Namespace)
		if err != nil {
			return exitError(ExitUsage, err)
		}
	} else {
		selected, err = selectors.Candidates(ctx, app.DB, m)
		if err != nil {
			return err
		}
	}
	if len(selected) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No items to migrate in namespace %s\n", m.Namespace)
		return nil
	}
	app.Logger.Info("planning", "namespace", m.Namespace, "selected", len(selected))

	reporter := progress.Reporter(progress.Nop{})
	if !planQuiet {
		reporter = progress.ForTerminal()
	}
	p := planner.New(app.Store.Items, planner.Options{
		DontMoveChildren: m.DontMoveChildren,
		Progress:         reporter,
	}, app.Logger)

	tree, err := p.Plan(ctx, selected)
	if err != nil {
		var structural *domain.StructuralError
		if errors.As(err, &structural) {
			return exitError(ExitStructural, err)
		}
		return fmt.Errorf("failed to plan: %w", err)
	}
	markDisabled(tree, m)

	if err := computeOverrides(ctx, app, tree, m.Namespace, !planNoPrefs, !planNoRights); err != nil {
		return err
	}

	doc, err := snapshot.FromTree(tree, m.Namespace, time.Now())
	if err != nil {
		return err
	}
	rec, err := savePlan(ctx, app, doc)
	if err != nil {
		return err
	}

	if planOut != "" {
		if _, err := snapshot.WriteFile(planOut, doc, outFormat); err != nil {
			return err
		}
	}
	if err := metrics.WriteFile(app.Config.MetricsFile); err != nil {
		app.Logger.Warn("metrics not written", "error", err)
	}

	out := cmd.OutOrStdout()
	if planQuiet {
		fmt.Fprintln(out, rec.UUID)
		return nil
	}
	if err := render.RenderTree(out, tree); err != nil {
		return err
	}
	stats := tree.Stats()
	fmt.Fprintf(out, "\nPlan %s (%s)\n", rec.UUID, rec.PlanRev)
	fmt.Fprintf(out, "  %d action(s): %d move(s), %d kept in place, %d disabled\n",
		rec.Actions, stats.Moves, stats.Identity, stats.Disabled)
	fmt.Fprintf(out, "  %d preference override(s), %d right override(s)\n", stats.Preferences, stats.Rights)
	if fallbacks := p.Fallbacks(); len(fallbacks) > 0 {
		fmt.Fprintf(out, "  %d item(s) could not be read and were kept in place\n", len(fallbacks))
	}
	return nil
}

// markDisabled clears Enabled on actions whose page key is disabled
func markDisabled(tree *plan.Tree, m config.Migration) {
	for _, a := range tree.Actions() {
		if !m.IsActionEnabled(executor.PageKey(a.Source())) {
			a.Enabled = false
		}
	}
}

// computeOverrides runs the preference and right engines over tree
func computeOverrides(ctx context.Context, app *appctx.App, tree *plan.Tree, namespace string, withPrefs, withRights bool) error {
	if withPrefs {
		if err := prefs.NewConverter(app.Store.Preferences, app.Logger).Convert(ctx, tree, namespace); err != nil {
			return fmt.Errorf("failed to compute preference overrides: %w", err)
		}
	}
	if withRights {
		if err := rights.NewConverter(app.Store.Rights, app.Logger).Convert(ctx, tree); err != nil {
			return fmt.Errorf("failed to compute right overrides: %w", err)
		}
	}
	return nil
}

// savePlan stores doc in its canonical form
func savePlan(ctx context.Context, app *appctx.App, doc *snapshot.Document) (*domain.PlanRecord, error) {
	data, err := snapshot.CanonicalJSON(doc)
	if err != nil {
		return nil, err
	}
	return app.Store.Plans.Save(ctx, app.Actor, store.PlanSaveParams{
		Namespace: doc.Meta.Namespace,
		PlanRev:   doc.Meta.PlanRev,
		Document:  string(data),
		Actions:   snapshot.Count(doc.Actions),
	})
}
