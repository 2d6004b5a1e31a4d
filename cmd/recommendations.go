/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
	"github.com/jacobarthurs/queryinsight/internal/store"

	"github.com/spf13/cobra"
)

var recommendationsCmd = &cobra.Command{
	Use:     "recommendations",
	Aliases: []string{"recs"},
	Short:   "Review stored recommendations",
}

var recommendationsListCmd = &cobra.Command{
	Use:   "list [query-id]",
	Short: "List stored recommendations, highest impact first",
	Example: `  queryinsight recommendations list
  queryinsight recommendations list --status pending --limit 10
  queryinsight recommendations list --high-impact
  queryinsight recommendations list 6f1c9a52-0b7e-4f0e-9d7e-2b0c1f3a4d5e`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		highImpact, _ := cmd.Flags().GetBool("high-impact")

		if err := validateFormat(format); err != nil {
			return err
		}
		if status != "" && !recommendation.Status(status).Valid() {
			return fmt.Errorf("invalid status %q: must be pending, applied, dismissed, or testing", status)
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

		filter := store.RecommendationFilter{
			Status: recommendation.Status(status),
			Limit:  limit,
		}
		if len(args) > 0 {
			filter.QueryID = args[0]
		}
		if highImpact {
			filter.MinImpact = recommendation.HighImpactThreshold
		}

		recs, err := st.ListRecommendations(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, recs)
		}
		return output.RenderRecordsText(os.Stdout, recs)
	},
}

func statusCommand(use, short string, status recommendation.Status) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>",
		Short:   short,
		Example: fmt.Sprintf("  queryinsight recommendations %s 3b0d2c1e-7a4f-4c8e-b5a6-9e8d7c6b5a4f", use),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetStatus(cmd.Context(), args[0], status); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("recommendation %q not found", args[0])
				}
				return err
			}
			fmt.Printf("Recommendation %q marked %s.\n", args[0], status)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(recommendationsCmd)
	recommendationsCmd.AddCommand(recommendationsListCmd)
	recommendationsCmd.AddCommand(statusCommand("apply", "Mark a recommendation as applied", recommendation.Applied))
	recommendationsCmd.AddCommand(statusCommand("dismiss", "Dismiss a recommendation", recommendation.Dismissed))
	recommendationsCmd.AddCommand(statusCommand("test", "Mark a recommendation as being tested", recommendation.Testing))
	recommendationsListCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	recommendationsListCmd.Flags().StringP("status", "s", "", "Only show recommendations with this status")
	recommendationsListCmd.Flags().IntP("limit", "n", 50, "Maximum number of recommendations, 0 for all")
	recommendationsListCmd.Flags().Bool("high-impact", false, fmt.Sprintf("Only show recommendations with impact of at least %.0f%%", recommendation.HighImpactThreshold))
}
