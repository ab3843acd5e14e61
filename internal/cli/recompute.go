package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/snapshot"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Work with the overrides of a stored plan",
}

var prefsRecomputeCmd = &cobra.Command{
	Use:   "recompute [PLAN]",
	Short: "Clear and recompute preference and right overrides of a plan",
	Long: `Drops the overrides of a stored plan and computes them again against the
current store. Use it after editing a plan by hand (moving actions around)
or after preferences or rights changed since planning.

Without --preferences or --rights both kinds are recomputed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runPrefsRecompute),
}

var (
	recomputePrefs  bool
	recomputeRights bool
)

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsRecomputeCmd)

	prefsRecomputeCmd.Flags().BoolVar(&recomputePrefs, "preferences", false, "Recompute preference overrides")
	prefsRecomputeCmd.Flags().BoolVar(&recomputeRights, "rights", false, "Recompute right overrides")
}

func runPrefsRecompute(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	withPrefs, withRights := recomputePrefs, recomputeRights
	if !withPrefs && !withRights {
		withPrefs, withRights = true, true
	}

	p, err := resolvePlan(ctx, app, planArg(args))
	if err != nil {
		return err
	}
	if p.Record == nil {
		return exitError(ExitUsage, fmt.Errorf("recompute works on stored plans; import the file first"))
	}

	ns := namespaceOf(p.Doc, app.Config.Namespace)
	tree, err := snapshot.ToTree(p.Doc, ns)
	if err != nil {
		return exitError(ExitStructural, err)
	}

	if withPrefs {
		tree.ClearPreferences()
	}
	if withRights {
		tree.ClearRights()
	}
	if err := computeOverrides(ctx, app, tree, ns, withPrefs, withRights); err != nil {
		return err
	}

	doc, err := snapshot.FromTree(tree, ns, time.Now())
	if err != nil {
		return err
	}
	data, err := snapshot.CanonicalJSON(doc)
	if err != nil {
		return err
	}
	if err := app.Store.Plans.UpdateDocument(ctx, app.Actor, p.Record.UUID, doc.Meta.PlanRev, string(data), snapshot.Count(doc.Actions)); err != nil {
		return err
	}

	stats := tree.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Plan %s: %d preference override(s), %d right override(s) (%s)\n",
		p.Record.UUID, stats.Preferences, stats.Rights, doc.Meta.PlanRev)
	return nil
}
