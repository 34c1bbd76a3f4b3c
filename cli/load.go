package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/api"
	"github.com/warp/capital-ledger/factory"
	"github.com/warp/capital-ledger/ledger"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Capitalize assets from a YAML or JSON catalog",
	Long: `Load reads an asset catalog and capitalizes every asset in it, applying
any depreciation windows listed under each asset.

The format follows the file extension (.yaml/.yml or .json). A single
asset can be given inline as JSON with --asset instead.`,
	Example: `  capledger load -f assets.yaml --db ledger.db
  capledger load -f assets.json --reset
  capledger load --asset '{"id":"m1","owner":"ml","initial_value":"1200","useful_life_months":12}'`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringP("file", "f", "", "catalog file")
	loadCmd.Flags().String("asset", "", "single asset definition as JSON")
	loadCmd.Flags().Bool("reset", false, "clear the store before loading")
	loadCmd.MarkFlagsOneRequired("file", "asset")
	loadCmd.MarkFlagsMutuallyExclusive("file", "asset")
}

func runLoad(cmd *cobra.Command, args []string) error {
	reset, _ := cmd.Flags().GetBool("reset")

	af := factory.NewAssetFactory()
	defs, source, err := readDefinitions(cmd, af)
	if err != nil {
		return err
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

	if reset {
		r, ok := store.(api.Resetter)
		if !ok {
			return api.ErrResetUnsupported
		}
		if err := r.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}

	res, err := af.Load(cmd.Context(), newLifecycle(store), defs)
	if err != nil {
		return err
	}

	report, err := ledger.NewIntegrityChecker(store).Report(cmd.Context(), timeNow())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d assets (%d depreciation runs) from %s\n", len(res.Assets), res.Depreciation, source)
	if !report.Valid() {
		fmt.Fprintf(out, "Warning: ledger has %d integrity problems, run 'capledger verify'\n", len(report.Problems))
	}
	return nil
}

// readDefinitions parses --file or --asset and names the source for the summary.
func readDefinitions(cmd *cobra.Command, af *factory.AssetFactory) ([]factory.Definition, string, error) {
	if inline, _ := cmd.Flags().GetString("asset"); inline != "" {
		def, err := af.ParseAsset(inline)
		if err != nil {
			return nil, "", err
		}
		return []factory.Definition{def}, "--asset", nil
	}

	path, _ := cmd.Flags().GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read catalog: %w", err)
	}
	defs, err := af.ParseCatalog(data, factory.FormatFromPath(path))
	if err != nil {
		return nil, "", err
	}
	return defs, path, nil
}
