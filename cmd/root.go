// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-pokedex",
	Short: "Renders a GitHub user's activity as an animated ASCII Pokédex SVG.",
	Long: `github-pokedex fetches a user's GitHub activity (commit streaks, issues,
commits, pull requests) and renders it into a themed ASCII Pokédex graphic,
one animated SVG with four cycling cards. It is meant to run on a schedule
from a profile README workflow.`,
}

// Execute runs the root command; main calls it exactly once. Cobra has
// already printed any error by the time it returns, so only the exit code
// is left to set.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Verbose is persistent so every subcommand shares the same switch.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
