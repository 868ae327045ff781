package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/team-pr-stats/internal/usecase"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregates team pull request stats once and outputs them as JSON",
	Long:  `Aggregates the pull requests and first-review comments of the given users in the configured repository, and outputs the result in JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(cmd)

		users, _ := cmd.Flags().GetStringSlice("user")
		fromStr, _ := cmd.Flags().GetString("from")
		summary, _ := cmd.Flags().GetBool("summary")

		startDate, err := parseFromDate(fromStr)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Inject dependencies and run the main business logic.
		aggregator, err := newAggregator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		report, err := aggregator.Aggregate(ctx, users, startDate, usecase.Options{IncludeSummary: summary})
		if err != nil {
			return fmt.Errorf("failed to aggregate stats: %w", err)
		}

		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

// parseFromDate accepts YYYY/MM/DD or YYYY-MM-DD and returns the GitHub search form.
func parseFromDate(s string) (string, error) {
	const githubDateLayout = "2006-01-02"
	for _, layout := range []string{"2006/01/02", githubDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(githubDateLayout), nil
		}
	}
	return "", fmt.Errorf("invalid --from date %q, use YYYY/MM/DD or YYYY-MM-DD", s)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringSliceP("user", "u", nil, "GitHub user name, repeatable (required)")
	statsCmd.Flags().String("from", "", "Start date for stats (YYYY/MM/DD) (required)")
	statsCmd.Flags().Bool("summary", false, "Include the comments-per-PR summary")
	statsCmd.MarkFlagRequired("user")
	statsCmd.MarkFlagRequired("from")
}
