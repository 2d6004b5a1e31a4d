/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/store"
	"github.com/jacobarthurs/queryinsight/internal/trend"

	"github.com/spf13/cobra"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Detect queries that got slower",
	Long: `Compare the average execution time of each query fingerprint in the recent
window against the baseline window before it.

A fingerprint is a regression when its recent average exceeds the baseline
by more than 30% and by more than 50ms, and the baseline has at least 5
observations.`,
	Example: `  # Last day against the week before it
  queryinsight trends

  # Last 6 hours against the previous 2 days
  queryinsight trends --recent-hours 6 --baseline-hours 54

  # Every fingerprint, not only regressions
  queryinsight trends --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		all, _ := cmd.Flags().GetBool("all")

		if err := validateFormat(format); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("recent-hours") {
			cfg.Trends.RecentHours, _ = cmd.Flags().GetInt("recent-hours")
		}
		if cmd.Flags().Changed("baseline-hours") {
			cfg.Trends.BaselineHours, _ = cmd.Flags().GetInt("baseline-hours")
		}
		if cfg.Trends.RecentHours <= 0 || cfg.Trends.BaselineHours <= cfg.Trends.RecentHours {
			return fmt.Errorf("baseline window (%dh) must be longer than the recent window (%dh)",
				cfg.Trends.BaselineHours, cfg.Trends.RecentHours)
		}

		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		recent, baseline, err := windowStats(cmd.Context(), st, cfg.Trends, time.Now())
		if err != nil {
			return err
		}

		if all {
			changes := trend.Compare(recent, baseline)
			if format == "json" {
				return output.RenderJSON(os.Stdout, changes)
			}
			return output.RenderChangesText(os.Stdout, changes)
		}

		regs := trend.Detect(recent, baseline)
		if format == "json" {
			return output.RenderJSON(os.Stdout, regs)
		}
		return output.RenderRegressionsText(os.Stdout, regs)
	},
}

func windowStats(ctx context.Context, st *store.Store, tc config.TrendsConfig, now time.Time) (recent, baseline []trend.WindowStat, err error) {
	recentFrom, recentTo, baselineFrom, baselineTo := trend.Windows(now, tc.RecentHours, tc.BaselineHours)

	recent, err = st.AggregateWindow(ctx, recentFrom, recentTo)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregating recent window: %w", err)
	}
	baseline, err = st.AggregateWindow(ctx, baselineFrom, baselineTo)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregating baseline window: %w", err)
	}
	return recent, baseline, nil
}

func init() {
	rootCmd.AddCommand(trendsCmd)
	trendsCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	trendsCmd.Flags().Int("recent-hours", config.DefaultRecentHours, "Size of the recent window in hours")
	trendsCmd.Flags().Int("baseline-hours", config.DefaultBaselineHours, "Hours back to the start of the baseline window")
	trendsCmd.Flags().BoolP("all", "a", false, "Show every fingerprint with a baseline, not only regressions")
}
