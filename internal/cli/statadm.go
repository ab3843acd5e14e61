package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/render"
)

var statAdmCmd = &cobra.Command{
	Use:   "stat",
	Short: "Print store statistics for the namespace",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runStatAdm),
}

var statAdmFormat string

func init() {
	rootAdmCmd.AddCommand(statAdmCmd)
	statAdmCmd.Flags().StringVarP(&statAdmFormat, "format", "f", "", "Output format: table, tsv, json, yaml")
}

func runStatAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(statAdmFormat)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	st, err := app.Store.Stats(cmd.Context(), app.Config.Namespace)
	if err != nil {
		return err
	}

	headers := []string{"KEY", "VALUE"}
	rows := [][]string{
		{"namespace", st.Namespace},
		{"database", app.DB.Path()},
		{"items", fmt.Sprint(st.Items)},
		{"redirects", fmt.Sprint(st.Redirects)},
		{"migrated", fmt.Sprint(st.Migrated)},
		{"properties", fmt.Sprint(st.Properties)},
		{"preferences", fmt.Sprint(st.Preferences)},
		{"rights", fmt.Sprint(st.Rights)},
		{"plans planned", fmt.Sprint(st.PlansPlanned)},
		{"plans executed", fmt.Sprint(st.PlansExecuted)},
		{"events", fmt.Sprint(st.Events)},
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}).Render(st, headers, rows)
}
