/*
main.go - Application entry point

PURPOSE:
  Runs the finance-gate command line. All behaviour lives in package cli;
  main only maps the returned error to a process exit code.

COMMANDS:
  serve      Run the HTTP write gate (settings from the environment)
  validate   Dry-run write attempts from JSON files
  policy     Show the effective policy or check a policy document

EXIT CODES:
  0  Success, every write accepted
  1  At least one write rejected, or the server failed
  2  Bad arguments, configuration or input files

ENVIRONMENT (serve):
  SERVER_PORT / PORT       HTTP port (default: 8080)
  DB_PATH / DATABASE_PATH  SQLite file; empty keeps records in memory
  POLICY_FILE              JSON or YAML policy document
  GATE_FENCED              Serialise validate+commit (default: true)
  LOG_LEVEL, LOG_FORMAT    debug|info|warn|error, text|json

EXAMPLES:
  # Serve with a file database and the month-end demo data
  DB_PATH=./data/finance.db ./server serve --scenario=month-end

  # Check a batch of proposed writes against fixtures
  ./server validate --fixtures=refs.json --format=json writes/*.json

SEE ALSO:
  - cli/root.go: Command tree
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/warp/finance-gate/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
