package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/executor"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/render"
	"github.com/lherron/nestmig/internal/snapshot"
	"github.com/lherron/nestmig/internal/store"
	"github.com/lherron/nestmig/internal/webhooks"
)

var applyCmd = &cobra.Command{
	Use:   "apply [PLAN]",
	Short: "Execute a migration plan",
	Long: `Executes a plan: every enabled action moves its item to the target,
removes a duplicate copy when one was found, relinks the declared parent and
stores the preference and right overrides of the new space.

A failed action does not stop the others. Actions already moved by an
earlier run are recognized and resumed, so an interrupted apply can be run
again. A plan is marked executed only once a run completes without
failures; applying an executed plan again requires --force.

Exit code is 5 when at least one action failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runApply),
}

var (
	applyMigration migrationFlags
	applyDryRun    bool
	applyForce     bool
	applyFormat    string
)

func init() {
	rootCmd.AddCommand(applyCmd)

	applyMigration.register(applyCmd)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Report what would happen without changing the store")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Apply a plan that was already executed")
	applyCmd.Flags().StringVarP(&applyFormat, "format", "f", "", "Output format: table, tsv, json, yaml")
}

func runApply(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := render.ParseFormat(applyFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}
	m, err := applyMigration.load(cmd, app.Config)
	if err != nil {
		return err
	}

	p, err := resolvePlan(ctx, app, planArg(args))
	if err != nil {
		return err
	}
	if p.Record != nil && p.Record.Status == domain.PlanStatusExecuted && !applyForce && !applyDryRun {
		return exitError(ExitStructural, fmt.Errorf("plan %s was already executed (use --force to run it again)", p.Record.UUID))
	}

	tree, err := snapshot.ToTree(p.Doc, namespaceOf(p.Doc, m.Namespace))
	if err != nil {
		return exitError(ExitStructural, err)
	}

	started := time.Now()
	exec := executor.New(app.Store.Items, app.Store, executor.Options{
		AutoRedirect: m.AutoRedirect,
		Actor:        app.Actor,
		DryRun:       applyDryRun,
		Enabled:      m.IsActionEnabled,
	}, app.Logger)

	report, err := exec.Execute(ctx, tree)
	if err != nil {
		return err
	}

	if p.Record != nil {
		run := store.PlanRun{
			DryRun:    report.DryRun,
			Moved:     report.Moved,
			Resumed:   report.Resumed,
			Skipped:   report.Skipped,
			Failed:    report.Failed,
			StartedAt: started,
		}
		if err := app.Store.Plans.RecordRun(ctx, app.Actor, p.Record.UUID, run); err != nil {
			return err
		}
	}
	if p.Record != nil && !report.DryRun && len(app.Config.WebhookURLs) > 0 {
		webhooks.New(app.Config.WebhookURLs, app.Logger).Dispatch(ctx, webhooks.Payload{
			PlanID:    p.Record.UUID,
			Namespace: p.Record.Namespace,
			PlanRev:   p.Record.PlanRev,
			Actor:     app.Actor,
			Moved:     report.Moved,
			Resumed:   report.Resumed,
			Skipped:   report.Skipped,
			Failed:    report.Failed,
		})
	}
	if err := metrics.WriteFile(app.Config.MetricsFile); err != nil {
		app.Logger.Warn("metrics not written", "error", err)
	}

	if err := renderReport(cmd, format, report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return exitError(ExitFailures, fmt.Errorf("%d action(s) failed", report.Failed))
	}
	return nil
}

func renderReport(cmd *cobra.Command, format render.Format, report *executor.Report) error {
	out := cmd.OutOrStdout()
	r := render.NewRenderer(out, render.Options{Format: format})

	if format == render.FormatJSON || format == render.FormatYAML {
		return r.Render(report, nil, nil)
	}

	headers := []string{"SOURCE", "TARGET", "OUTCOME", "OVERRIDES", "ERROR"}
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{
			res.Source.String(),
			res.Target.String(),
			string(res.Outcome),
			fmt.Sprint(res.Overrides),
			res.Error,
		})
	}
	if err := r.Render(report, headers, rows); err != nil {
		return err
	}

	if format == render.FormatTable {
		prefix := ""
		if report.DryRun {
			prefix = "[dry run] "
		}
		fmt.Fprintf(out, "\n%s%d moved, %d resumed, %d skipped, %d failed in %s\n",
			prefix, report.Moved, report.Resumed, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
	}
	return nil
}
