package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/nestmig/internal/cli/appctx"
	"github.com/lherron/nestmig/internal/store"
)

var seedAdmCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load a YAML fixture of items, preferences and rights",
	Long: `Seed loads a namespace fixture into the database:

  namespace: wiki
  properties: [SKIN]
  globals: {SKIN: classic}
  preferences:
    - {space: A, name: SKIN, value: pattern}
  rights:
    - {group: Admins, level: edit}
    - {space: A, user: alice, level: view, allow: false}
  items:
    - {path: Main/INDEX}
    - {path: A/INDEX}
    - {path: A/Child, parent: A/INDEX, creator: alice, content: "..."}

Items are created in order; existing items make the load fail.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSeedAdm),
}

func init() {
	rootAdmCmd.AddCommand(seedAdmCmd)
}

func runSeedAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	res, err := loadFixtureFile(cmd, app, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %d item(s), %d propert(ies), %d preference(s), %d right(s)\n",
		res.Items, res.Properties, res.Preferences, res.Rights)
	return nil
}

func loadFixtureFile(cmd *cobra.Command, app *appctx.App, path string) (*store.FixtureResult, error) {
	f, err := store.ReadFixture(path)
	if err != nil {
		return nil, exitError(ExitUsage, err)
	}
	res, err := app.Store.LoadFixture(cmd.Context(), f, app.Config.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	app.Logger.Info("fixture loaded", "file", path, "items", res.Items)
	return res, nil
}
