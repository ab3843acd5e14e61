package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nestmig",
	Short: "Plan and apply nested-page migrations of a wiki namespace",
	Long: `nestmig converts a flat wiki namespace into a nested one. Terminal items
are moved under a space of their own, placed below their declared parent,
with preference and access-right overrides that keep effective values
unchanged.

Plans are computed with 'nestmig plan', inspected with show, diff and query,
and executed with 'nestmig apply'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides NESTMIG_DB_PATH)")
	rootCmd.PersistentFlags().String("as", "", "Actor recorded on events (overrides NESTMIG_ACTOR)")
	rootCmd.PersistentFlags().StringP("namespace", "n", "", "Namespace to operate on (overrides NESTMIG_NAMESPACE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}
