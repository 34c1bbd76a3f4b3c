package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/export"
	"github.com/warp/capital-ledger/ledger"
)

// ErrLedgerInvalid is returned by verify when problems were found.
var ErrLedgerInvalid = errors.New("ledger failed integrity verification")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the full integrity scan",
	Long: `Verify checks every asset, event, ledger entry, journal posting and
proof chain in the configured store.

With --file it audits a JSON export instead, without opening a store.
The command exits non-zero if any problem is found.`,
	Example: `  capledger verify --db ledger.db
  capledger verify --file ledger.json`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("file", "", "audit a JSON export instead of the store")
}

func runVerify(cmd *cobra.Command, args []string) error {
	var problems []string
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open export: %w", err)
		}
		defer f.Close()

		snap, err := export.Decode(f)
		if err != nil {
			return err
		}
		problems = export.Audit(snap)
	} else {
		report, err := storeReport(cmd)
		if err != nil {
			return err
		}
		problems = report.Problems
		if !report.JournalBalanced {
			problems = append(problems, "Journal: debits and credits do not balance")
		}
	}

	return printProblems(cmd.OutOrStdout(), problems)
}

func storeReport(cmd *cobra.Command) (ledger.IntegrityReport, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	defer closeStore()

	return ledger.NewIntegrityChecker(store).Report(cmd.Context(), timeNow())
}

func printProblems(out io.Writer, problems []string) error {
	if len(problems) == 0 {
		fmt.Fprintln(out, "OK: no integrity problems found")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return fmt.Errorf("%w: %d problems", ErrLedgerInvalid, len(problems))
}
