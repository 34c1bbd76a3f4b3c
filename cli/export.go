package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full ledger (json, csv or xlsx)",
	Example: `  capledger export --format json > ledger.json
  capledger export --format xlsx --out ledger.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "json", "output format: json, csv or xlsx")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	name, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(name)
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

	snap, err := export.Collect(cmd.Context(), store, timeNow())
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	return export.Encode(snap, format, w)
}
