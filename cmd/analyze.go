/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jacobarthurs/queryinsight/internal/collector"
	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/fingerprint"
	"github.com/jacobarthurs/queryinsight/internal/orchestrator"
	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/store"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a single query",
	Long: `Analyze a single PostgreSQL query and print ranked optimization recommendations.

Input can be a SQL file, or JSON file (EXPLAIN output).
Use "-" to read from stdin. If no file is provided, enters interactive mode.

For SQL input with a database connection, the plan is captured with
EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) inside a rolled back transaction.
Without a connection, or for statements other than SELECT, the query text
heuristics are used instead.`,
	Example: `  # Analyze from file
  queryinsight analyze query.sql --profile prod

  # Analyze a captured plan along with its query
  queryinsight analyze plan.json --query query.sql

  # Heuristics only, with a known execution time
  queryinsight analyze query.sql --exec-time 850

  # Read from stdin and keep the result
  cat query.sql | queryinsight analyze - --save`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")
		execTime, _ := cmd.Flags().GetFloat64("exec-time")
		queryFile, _ := cmd.Flags().GetString("query")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		save, _ := cmd.Flags().GetBool("save")

		if err := validateFormat(format); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		connStr, err := config.ResolveConnStr(db, profileName)
		if err != nil {
			return err
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		in, err := plan.Resolve(file, "")
		if err != nil {
			return err
		}
		if in.Plan != nil && queryFile != "" {
			in.SQL, err = plan.ReadText(queryFile, "query ")
			if err != nil {
				return err
			}
		}
		if execTime == 0 && in.Plan != nil {
			execTime = in.Plan.ExecutionTime
		}

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		capture := &planCapture{}
		opts := []orchestrator.Option{orchestrator.WithRecorder(capture), orchestrator.WithLogger(slog.Default())}

		if connStr != "" && in.Plan == nil {
			conn, err := collector.Connect(ctx, connStr)
			if err != nil {
				return err
			}
			defer conn.Close()
			opts = append(opts, orchestrator.WithFetcher(plan.NewFetcher(conn, plan.WithAnalyze(cfg.Analysis.UseAnalyze()))))
		} else if in.Plan == nil {
			slog.Info("no database connection, using query text heuristics")
		}

		q := orchestrator.Query{SQLText: in.SQL, ExecutionTimeMs: execTime, Plan: in.Plan}

		var st *store.Store
		if save {
			st, err = openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rec := &store.QueryRecord{
				SQLText:         q.SQLText,
				Fingerprint:     fingerprint.Normalize(q.SQLText),
				ExecutionTimeMs: q.ExecutionTimeMs,
			}
			if err := st.SaveQuery(ctx, rec); err != nil {
				return err
			}
			q.ID = rec.ID
			capture.next = st
		}

		result, err := orchestrator.New(opts...).Analyze(ctx, q)
		if err != nil {
			return err
		}

		if st != nil {
			saved, err := st.SaveRecommendations(ctx, q.ID, result.Recommendations)
			if err != nil {
				return err
			}
			slog.Info("analysis saved", "query_id", q.ID, "recommendations", len(saved))
		}

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, result)
		default:
			return output.RenderResultText(os.Stdout, result, capture.plan)
		}
	},
}

// planCapture keeps the plan the analysis ran on so it can be summarized,
// forwarding it to next when the query is being stored.
type planCapture struct {
	next orchestrator.PlanRecorder
	plan *plan.ExplainOutput
}

func (c *planCapture) AttachPlan(ctx context.Context, queryID string, p *plan.ExplainOutput) error {
	c.plan = p
	if c.next == nil {
		return nil
	}
	return c.next.AttachPlan(ctx, queryID, p)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	analyzeCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	analyzeCmd.Flags().Float64("exec-time", 0, "Observed execution time in ms (used by heuristics)")
	analyzeCmd.Flags().StringP("query", "q", "", "SQL file for the query behind a JSON plan input")
	analyzeCmd.Flags().Duration("timeout", 30*time.Second, "Maximum time for EXPLAIN, 0 for none")
	analyzeCmd.Flags().Bool("save", false, "Store the query and its recommendations")
	analyzeCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
