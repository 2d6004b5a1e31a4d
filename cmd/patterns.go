/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/trend"

	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show the most frequent query fingerprints",
	Long: `Group the queries observed in the last --hours by fingerprint and list
each with its observation count and average execution time, most frequent
first.`,
	Example: `  # Last day
  queryinsight patterns

  # Last week, top 10
  queryinsight patterns --hours 168 --limit 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		hours, _ := cmd.Flags().GetInt("hours")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := validateFormat(format); err != nil {
			return err
		}
		if hours <= 0 {
			return fmt.Errorf("--hours must be positive, got %d", hours)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		now := time.Now()
		stats, err := st.AggregateWindow(cmd.Context(), now.Add(-time.Duration(hours)*time.Hour), now)
		if err != nil {
			return err
		}
		stats = rankPatterns(stats, limit)

		if format == "json" {
			return output.RenderJSON(os.Stdout, stats)
		}
		return output.RenderPatternsText(os.Stdout, stats)
	},
}

// rankPatterns orders stats by observation count, then by average time, and
// keeps the first limit. A limit of 0 keeps all.
func rankPatterns(stats []trend.WindowStat, limit int) []trend.WindowStat {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].AvgExecTimeMs > stats[j].AvgExecTimeMs
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	patternsCmd.Flags().Int("hours", config.DefaultRecentHours, "Size of the window in hours")
	patternsCmd.Flags().IntP("limit", "n", 20, "Maximum number of fingerprints, 0 for all")
}
