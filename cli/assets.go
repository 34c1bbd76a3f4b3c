package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/factory"
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Print the registered assets as a loadable catalog",
	Long: `Assets prints every asset with its current owner and recorded
depreciation windows, in the catalog format accepted by 'capledger load'.
Utilization, allocation history and retirement are not included.`,
	Example: `  capledger assets --db ledger.db > catalog.yaml
  capledger load -f catalog.yaml --db fresh.db`,
	RunE: runAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.Flags().String("format", string(factory.FormatYAML), "output format: yaml or json")
}

func runAssets(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format := factory.Format(name)
	if format != factory.FormatYAML && format != factory.FormatJSON {
		return fmt.Errorf("unknown catalog format %q (use yaml or json)", name)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog, err := factory.NewAssetFactory().Catalog(cmd.Context(), store)
	if err != nil {
		return err
	}
	return factory.EncodeCatalog(catalog, format, cmd.OutOrStdout())
}
