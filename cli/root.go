// Package cli implements the capledger command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/config"
	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
	"github.com/warp/capital-ledger/ledger/store"
	"github.com/warp/capital-ledger/metrics"
	"github.com/warp/capital-ledger/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "capledger",
	Short: "An intelligence-capital ledger for AI model assets",
	Long: `capledger records trained models as capital assets.

It provides tools for:
  - Capitalizing, allocating, depreciating and retiring model assets
  - Double-entry journal postings for every value change
  - Hash-chained capital proofs for audit
  - Integrity scans and exports (JSON, CSV, XLSX)
  - An HTTP API with Prometheus metrics

Configuration is read from --config (YAML) and CAPLEDGER_* environment
variables, on top of built-in defaults.`,
	SilenceUsage: true,
}

// timeNow stamps integrity reports and exports.
var timeNow = time.Now

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store settings)")
}

// loadConfig applies --config and --db.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = db
	}
	return cfg, nil
}

// openStore builds the configured store. The returned close func is never nil.
func openStore(cfg *config.Config) (ledger.TxStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewTxMemory(), func() error { return nil }, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newLifecycle wires the lifecycle to the Prometheus recorder.
func newLifecycle(s ledger.Store) *ledger.Lifecycle {
	return ledger.NewLifecycle(s, id.New, ledger.WithRecorder(metrics.Recorder{}))
}
