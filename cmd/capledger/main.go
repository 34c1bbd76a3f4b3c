/*
main.go - Application entry point

PURPOSE:
  Runs the capledger command line. All commands live in package cli;
  `capledger serve` starts the HTTP API.

EXAMPLES:
  # Start the API on a file database
  capledger serve --db=./data/ledger.db

  # Capitalize a catalog of models, then audit the ledger
  capledger load -f assets.yaml
  capledger verify

ENVIRONMENT:
  CAPLEDGER_SERVER_PORT, CAPLEDGER_STORE_DRIVER, CAPLEDGER_STORE_PATH, ...
  See config/config.go for the full list.

SEE ALSO:
  - cli/root.go: Command tree
  - cli/serve.go: Server startup and graceful shutdown
*/
package main

import (
	"os"

	"github.com/warp/capital-ledger/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
