/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jacobarthurs/queryinsight/internal/collector"
	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/fingerprint"
	"github.com/jacobarthurs/queryinsight/internal/orchestrator"
	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/store"

	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect and analyze slow queries from pg_stat_statements",
	Long: `Collect the slowest statements from pg_stat_statements, store an observation
for each one, and analyze them in parallel.

Recommendations are stored as pending and can be reviewed with
"queryinsight recommendations list".`,
	Example: `  # Collect with config defaults
  queryinsight collect --profile prod

  # Only statements averaging over 200ms, at most 5
  queryinsight collect --threshold 200 --limit 5

  # Record observations for trend tracking only
  queryinsight collect --no-analyze`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")

		if err := validateFormat(format); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Collect.ThresholdMs, _ = cmd.Flags().GetFloat64("threshold")
		}
		if cmd.Flags().Changed("limit") {
			cfg.Collect.Limit, _ = cmd.Flags().GetInt("limit")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Analysis.Workers, _ = cmd.Flags().GetInt("workers")
		}
		noAnalyze, _ := cmd.Flags().GetBool("no-analyze")

		connStr, err := requireConnStr(db, profileName)
		if err != nil {
			return err
		}

		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := runCollect(cmd.Context(), cfg, connStr, st, !noAnalyze)
		if err != nil {
			return err
		}
		if noAnalyze {
			return nil
		}

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, results)
		default:
			return output.RenderResultsText(os.Stdout, results)
		}
	},
}

func requireConnStr(db, profileName string) (string, error) {
	connStr, err := config.ResolveConnStr(db, profileName)
	if err != nil {
		return "", err
	}
	if connStr == "" {
		return "", fmt.Errorf("database connection required: use --db, --profile, or set a default profile")
	}
	return connStr, nil
}

// runCollect samples slow queries into st and, when analyze is set,
// analyzes them and stores their recommendations.
func runCollect(ctx context.Context, cfg *config.Config, connStr string, st *store.Store, analyze bool) ([]orchestrator.Result, error) {
	logger := slog.Default()

	conn, err := collector.Connect(ctx, connStr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	slow, err := collector.New(conn, logger).SlowQueries(ctx, cfg.Collect.ThresholdMs, cfg.Collect.Limit)
	if err != nil {
		return nil, err
	}

	records := make([]store.QueryRecord, 0, len(slow))
	queries := make([]orchestrator.Query, 0, len(slow))
	for _, sq := range slow {
		rec := &store.QueryRecord{
			Source:          store.SourceCollector,
			SQLText:         sq.SQLText,
			Fingerprint:     fingerprint.Normalize(sq.SQLText),
			ExecutionTimeMs: sq.MeanExecTimeMs,
			Calls:           sq.Calls,
		}
		if err := st.SaveQuery(ctx, rec); err != nil {
			return nil, err
		}
		records = append(records, *rec)
		queries = append(queries, orchestrator.Query{
			ID:              rec.ID,
			SQLText:         rec.SQLText,
			ExecutionTimeMs: rec.ExecutionTimeMs,
		})
	}

	run := store.SummarizeRun(cfg.Collect.ThresholdMs, records)
	if err := st.SaveRun(ctx, &run); err != nil {
		return nil, err
	}
	logger.Info("collected slow queries",
		"count", run.QueryCount,
		"threshold_ms", run.ThresholdMs,
		"avg_exec_time_ms", run.AvgExecTimeMs,
	)

	if !analyze || len(queries) == 0 {
		return nil, nil
	}

	orch := orchestrator.New(
		orchestrator.WithFetcher(plan.NewFetcher(conn, plan.WithAnalyze(cfg.Analysis.UseAnalyze()))),
		orchestrator.WithRecorder(st),
		orchestrator.WithLogger(logger),
	)

	results, err := orch.AnalyzeAll(ctx, queries, cfg.Analysis.Workers)
	if err != nil {
		return nil, err
	}

	var saved int
	for _, res := range results {
		recs, err := st.SaveRecommendations(ctx, res.QueryID, res.Recommendations)
		if err != nil {
			return nil, err
		}
		saved += len(recs)
	}
	logger.Info("saved recommendations", "queries", len(results), "recommendations", saved)

	return results, nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	collectCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	collectCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	collectCmd.Flags().Float64("threshold", config.DefaultThresholdMs, "Minimum mean execution time in ms")
	collectCmd.Flags().Int("limit", config.DefaultCollectLimit, "Maximum number of queries to collect")
	collectCmd.Flags().Int("workers", config.DefaultWorkers, "Parallel analyses")
	collectCmd.Flags().Bool("no-analyze", false, "Store observations without analyzing them")
	collectCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
