package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/breakage"
	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/progress"
	"github.com/lherron/nestmig/internal/render"
	"github.com/lherron/nestmig/internal/selectors"
)

var breakageCmd = &cobra.Command{
	Use:   "breakage [ITEM...]",
	Short: "List items whose declared parent disagrees with their location",
	Long: `Checks the declared parent of items against the parent implied by where
they are stored: the index of their own space for terminal items, the index
one level up for nested index items, and the home space index for
top-level index items.

Without ITEM every item of the namespace is checked, redirect stubs
excepted. Exit code is 5 when some items could not be read.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runBreakage),
}

var (
	breakageJobs   int
	breakageHome   string
	breakageFormat string
)

func init() {
	rootCmd.AddCommand(breakageCmd)

	breakageCmd.Flags().IntVarP(&breakageJobs, "jobs", "j", 4, "Number of parallel readers")
	breakageCmd.Flags().StringVar(&breakageHome, "home", "", "Home space (overrides NESTMIG_HOME_SPACE)")
	breakageCmd.Flags().StringVarP(&breakageFormat, "format", "f", "", "Output format: table, tsv, json, yaml")
}

func runBreakage(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := render.ParseFormat(breakageFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	var items []paths.Path
	if len(args) > 0 {
		items, err = selectors.ParseItems(args, app.Config.Namespace)
		if err != nil {
			return exitError(ExitUsage, err)
		}
	} else {
		all, err := app.Store.Items.List(ctx, app.Config.Namespace)
		if err != nil {
			return err
		}
		for _, item := range all {
			if item.RedirectTo == nil {
				items = append(items, item.Path)
			}
		}
	}

	home := app.Config.HomeSpace
	if breakageHome != "" {
		home = breakageHome
	}
	detector := breakage.New(app.Store.Items, breakage.Options{
		HomeSpace: home,
		Jobs:      breakageJobs,
		Progress:  progress.ForTerminal(),
	}, app.Logger)

	report, err := detector.Detect(ctx, items)
	if err != nil {
		return err
	}

	headers := []string{"ITEM", "DECLARED", "LOCATION"}
	rows := make([][]string, 0, len(report.Broken))
	for _, b := range report.Broken {
		declared := "-"
		if b.Declared != nil {
			declared = b.Declared.String()
		}
		rows = append(rows, []string{b.Path.String(), declared, b.Location.String()})
	}
	if err := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}).Render(report, headers, rows); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "%d of %d item(s) broken\n", len(report.Broken), report.Checked)
	if len(report.Failed) > 0 {
		report.Reads.PrintSummary(errOut)
	}
	return exitError(report.Reads.ExitCode(), readFailures(report))
}

func readFailures(report *breakage.Report) error {
	if len(report.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d item(s) could not be read", len(report.Failed))
}
