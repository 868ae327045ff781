// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/team-pr-stats/internal/config"
	"github.com/naka-gawa/team-pr-stats/internal/gateway"
	"github.com/naka-gawa/team-pr-stats/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "team-pr-stats",
	Short: "Aggregates pull request review comments for a team.",
	Long: `team-pr-stats aggregates the pull requests a set of authors opened in one
GitHub repository since a start date, together with the comments of each
pull request's first review. Run it as an HTTP service with "serve" or
once from the command line with "stats".`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML config file")
}

// newLogger writes JSON logs to stderr; verbose lowers the level to debug.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newAggregator wires the gateway and aggregator from the configuration.
func newAggregator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*usecase.Aggregator, error) {
	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:           cfg.Token,
		Owner:           cfg.RepoOwner,
		Repo:            cfg.RepoName,
		BaseURL:         cfg.BaseURL,
		WaitOnRateLimit: cfg.WaitOnRateLimit,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	if cfg.VerifyRepo {
		if err := githubGateway.VerifyRepository(ctx); err != nil {
			return nil, fmt.Errorf("failed to verify repository: %w", err)
		}
	}
	return usecase.NewAggregator(githubGateway, logger, cfg.Concurrency), nil
}
