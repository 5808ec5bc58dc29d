// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ymgch/github-pokedex/internal/gateway"
	"github.com/ymgch/github-pokedex/internal/render"
	"github.com/ymgch/github-pokedex/internal/usecase"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetches GitHub activity and writes the Pokédex SVG",
	Long: `Fetches activity (commit streaks, issues, pull requests) for a GitHub user
and writes the rendered four-card Pokédex SVG to the output path. A run with
partially unavailable data still produces a complete SVG with the affected
cards zeroed; only missing configuration aborts before any API call.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Local .env files are a convenience for development; in CI the
		// variables come from the workflow environment.
		_ = godotenv.Load()

		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = os.Getenv("GITHUB_USERNAME")
		}
		if user == "" {
			fmt.Fprintln(os.Stderr, "Error: no username given; set --user or GITHUB_USERNAME.")
			os.Exit(1)
		}
		output, _ := cmd.Flags().GetString("out")
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		theme := render.DefaultTheme()
		if desc, _ := cmd.Flags().GetString("streak-desc"); desc != "" {
			theme.Streak.Description = desc
		}
		if desc, _ := cmd.Flags().GetString("issues-desc"); desc != "" {
			theme.Issues.Description = desc
		}
		if desc, _ := cmd.Flags().GetString("commits-desc"); desc != "" {
			theme.Commits.Description = desc
		}
		if desc, _ := cmd.Flags().GetString("prs-desc"); desc != "" {
			theme.PullRequests.Description = desc
		}

		// Inject dependencies and run the pipeline.
		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		aggregator := usecase.NewAggregator(githubGateway, logger)

		statsBundle, err := aggregator.Aggregate(ctx, user)
		if err != nil {
			var partial *usecase.PartialDataError
			if !errors.As(err, &partial) {
				fmt.Fprintf(os.Stderr, "Failed to aggregate stats: %v\n", err)
				os.Exit(1)
			}
			// Degraded sources render as zeroed cards; keep going.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}

		if verbose {
			if jsonData, err := json.MarshalIndent(statsBundle, "", "  "); err == nil {
				fmt.Fprintln(os.Stderr, string(jsonData))
			}
		}

		// Render only after aggregation settled, so a failed run can never
		// leave a partially written SVG behind.
		svg, err := render.RenderSVG(*statsBundle, render.Options{
			Theme:     theme,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render SVG: %v\n", err)
			os.Exit(1)
		}

		if err := os.WriteFile(output, svg, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", output, err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s for %s\n", output, user)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("user", "u", "", "Target GitHub user name (defaults to GITHUB_USERNAME)")
	generateCmd.Flags().StringP("out", "o", "github-pokedex.svg", "Output SVG file path")
	generateCmd.Flags().String("streak-desc", "", "Override flavor text on the streak card")
	generateCmd.Flags().String("issues-desc", "", "Override flavor text on the issues card")
	generateCmd.Flags().String("commits-desc", "", "Override flavor text on the commits card")
	generateCmd.Flags().String("prs-desc", "", "Override flavor text on the pull request card")
}
