package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "nestmigadm",
	Short: "Administrative CLI for the nestmig database",
	Long: `nestmigadm is the administrative companion to nestmig. It handles
database lifecycle (init, migrate), loading item fixtures and store
statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin(ctx context.Context) error {
	return rootAdmCmd.ExecuteContext(ctx)
}

func init() {
	rootAdmCmd.PersistentFlags().String("db", "", "Path to database file (overrides NESTMIG_DB_PATH)")
	rootAdmCmd.PersistentFlags().String("as", "", "Actor recorded on events (overrides NESTMIG_ACTOR)")
	rootAdmCmd.PersistentFlags().StringP("namespace", "n", "", "Namespace to operate on (overrides NESTMIG_NAMESPACE)")
	rootAdmCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}
