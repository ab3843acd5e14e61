package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/render"
	"github.com/lherron/nestmig/internal/snapshot"
)

var showCmd = &cobra.Command{
	Use:   "show [PLAN]",
	Short: "Show a stored plan",
	Long: `Shows a plan as a tree (default), a table, JSON or YAML.

PLAN is a plan id, a unique id prefix, or a plan document file. Without
PLAN the latest plan of the namespace is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runShow),
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List stored plans",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runPlans),
}

var exportCmd = &cobra.Command{
	Use:   "export [PLAN]",
	Short: "Write a stored plan document",
	Long: `Writes the document of a stored plan to stdout or to --out. The document
can be edited (toggle enabled, drop overrides) and stored back with import.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runExport),
}

var importCmd = &cobra.Command{
	Use:   "import FILE|-",
	Short: "Store a plan document",
	Long: `Reads a plan document (wrapped JSON, bare JSON array of top-level actions,
or YAML), validates it and stores it as a new plan.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runImport),
}

var diffCmd = &cobra.Command{
	Use:   "diff PLAN_A [PLAN_B]",
	Short: "Show a unified diff between two plans",
	Long: `Compares two plans and prints a unified diff of their documents.
With a single argument the plan is compared with the latest plan.

Exit code is 0 when the plans are identical and 1 when they differ.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDiff),
}

var queryCmd = &cobra.Command{
	Use:   "query [PLAN] EXPR",
	Short: "Evaluate a JSONPath expression over a plan",
	Long: `Evaluates a JSONPath expression over the document of a plan and prints
one JSON value per line.

Examples:
  nestmig query '$.actions[*].target'
  nestmig query 3f2a '$..rights[?(@.allow == false)]'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runQuery),
}

var (
	showFormat   string
	plansLimit   int
	plansFormat  string
	plansCursor  string
	exportOut    string
	exportFormat string
)

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(queryCmd)

	showCmd.Flags().StringVarP(&showFormat, "format", "f", "tree", "Output format: tree, table, tsv, json, yaml")
	plansCmd.Flags().IntVar(&plansLimit, "limit", 20, "Maximum number of plans per page (0 lists all)")
	plansCmd.Flags().StringVar(&plansCursor, "cursor", "", "Resume listing after this cursor")
	plansCmd.Flags().StringVarP(&plansFormat, "format", "f", "", "Output format: table, tsv, json, yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Document format: json, canonical, yaml")
}

func planArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func runShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(showFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	p, err := resolvePlan(cmd.Context(), app, planArg(args))
	if err != nil {
		return err
	}
	tree, err := snapshot.ToTree(p.Doc, app.Config.Namespace)
	if err != nil {
		return exitError(ExitStructural, err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case render.FormatTree:
		return render.RenderTree(out, tree)
	case render.FormatJSON, render.FormatYAML:
		return render.NewRenderer(out, render.Options{Format: format}).Render(p.Doc, nil, nil)
	default:
		headers, rows := render.PlanRows(tree)
		return render.NewRenderer(out, render.Options{Format: format}).Render(nil, headers, rows)
	}
}

func runPlans(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(plansFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	var records []*domain.PlanRecord
	var next string
	if plansLimit <= 0 && plansCursor == "" {
		records, err = app.Store.Plans.List(cmd.Context(), app.Config.Namespace, 0)
	} else {
		records, next, err = app.Store.Plans.Page(cmd.Context(), app.Config.Namespace, plansLimit, plansCursor)
		if err != nil && plansCursor != "" {
			return exitError(ExitUsage, err)
		}
	}
	if err != nil {
		return err
	}
	if next != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "next cursor: %s\n", next)
	}

	headers := []string{"ID", "STATUS", "ACTIONS", "RUNS", "REV", "CREATED"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		runs, err := app.Store.Plans.Runs(cmd.Context(), r.UUID)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			r.UUID,
			string(r.Status),
			fmt.Sprint(r.Actions),
			fmt.Sprint(runs),
			shortRev(r.PlanRev),
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}).Render(records, headers, rows)
}

func shortRev(rev string) string {
	const prefix = len("sha256:")
	if len(rev) > prefix+12 {
		return rev[prefix : prefix+12]
	}
	return rev
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := snapshot.ParseFormat(exportFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	p, err := resolvePlan(cmd.Context(), app, planArg(args))
	if err != nil {
		return err
	}

	if exportOut == "" {
		return snapshot.Encode(cmd.OutOrStdout(), p.Doc, format)
	}
	res, err := snapshot.WriteFile(exportOut, p.Doc, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d action(s) to %s\n", res.Actions, res.OutputPath)
	return nil
}

func runImport(app *appctx.App, cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	doc, err := snapshot.Decode(data)
	if err != nil {
		return exitError(ExitStructural, err)
	}
	if v, err := snapshot.Verify(doc); err == nil && !v.Valid {
		app.Logger.Info("imported plan differs from its recorded revision", "detail", v.Message)
	}

	ns := namespaceOf(doc, app.Config.Namespace)
	tree, err := snapshot.ToTree(doc, ns)
	if err != nil {
		return exitError(ExitStructural, err)
	}

	normalized, err := snapshot.FromTree(tree, ns, time.Now())
	if err != nil {
		return err
	}
	rec, err := savePlan(cmd.Context(), app, normalized)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported plan %s (%d action(s), %s)\n", rec.UUID, rec.Actions, rec.PlanRev)
	return nil
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := resolvePlan(ctx, app, args[0])
	if err != nil {
		return err
	}
	b, err := resolvePlan(ctx, app, planArg(args[1:]))
	if err != nil {
		return err
	}

	fromName, toName := a.Name(), b.Name()
	if a.Record == nil {
		fromName = args[0]
	}
	if b.Record == nil && len(args) > 1 {
		toName = args[1]
	}

	text, err := snapshot.Diff(a.Doc, b.Doc, fromName, toName)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return exitError(ExitGeneric, fmt.Errorf("plans differ"))
}

func runQuery(app *appctx.App, cmd *cobra.Command, args []string) error {
	ref, expr := "", args[0]
	if len(args) == 2 {
		ref, expr = args[0], args[1]
	}

	p, err := resolvePlan(cmd.Context(), app, ref)
	if err != nil {
		return err
	}
	results, err := snapshot.Query(p.Doc, expr)
	if err != nil {
		return exitError(ExitUsage, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), snapshot.QueryJSON(results))
	return nil
}
