// Command atlas is a local project registry and capture inbox: it scans
// project roots, reconciles them into a SQLite registry, and triages
// quick captures through an inbox workflow.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "atlas",
	Short:   "Local project registry and capture inbox",
	Version: version,
	Long: `atlas tracks your projects and quick captures.

The server ("atlas start") scans configured root directories, reconciles
what it finds into a local registry, and serves a loopback API plus an
MCP server for agent integrations. All other commands talk to that API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
