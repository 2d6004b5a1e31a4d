/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/store"

	"github.com/spf13/cobra"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Browse stored query observations",
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored queries, most recently observed first",
	Example: `  queryinsight queries list
  queryinsight queries list --limit 10 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := validateFormat(format); err != nil {
			return err
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

		queries, err := st.ListQueries(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, queries)
		}
		return output.RenderQueriesText(os.Stdout, queries)
	},
}

var queriesShowCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a stored query with its plan and recommendations",
	Example: `  queryinsight queries show 6f1c9a52-0b7e-4f0e-9d7e-2b0c1f3a4d5e`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := validateFormat(format); err != nil {
			return err
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

		ctx := cmd.Context()
		q, err := st.GetQuery(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("query %q not found", args[0])
			}
			return err
		}
		recs, err := st.ListRecommendations(ctx, store.RecommendationFilter{QueryID: q.ID})
		if err != nil {
			return err
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, struct {
				store.QueryRecord
				Recommendations []store.RecommendationRecord `json:"recommendations"`
			}{q, recs})
		}
		return output.RenderQueryDetailText(os.Stdout, q, recs)
	},
}

var queriesRunsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "List summaries of past collection runs",
	Example: `  queryinsight queries runs --limit 5`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := validateFormat(format); err != nil {
			return err
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

		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, runs)
		}
		return output.RenderRunsText(os.Stdout, runs)
	},
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd, queriesShowCmd, queriesRunsCmd)

	for _, c := range []*cobra.Command{queriesListCmd, queriesShowCmd, queriesRunsCmd} {
		c.Flags().StringP("format", "f", "text", "Output format: text, json")
	}
	queriesListCmd.Flags().IntP("limit", "n", 50, "Maximum number of queries")
	queriesRunsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs")
}
