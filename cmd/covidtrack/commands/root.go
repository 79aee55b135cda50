package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "covidtrack",
	Short: "Daily epidemiological snapshot service",
	Long: `covidtrack maintains a daily series of epidemiological snapshots,
serves point, filtered, and range-aggregated queries over it, and keeps
the series current via scheduled backfill and live reconciliation.

Usage:
  go run ./cmd/covidtrack [command]

Examples:
  go run ./cmd/covidtrack api
  go run ./cmd/covidtrack backfill
  go run ./cmd/covidtrack scheduler start`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
