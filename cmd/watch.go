/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/store"
	"github.com/jacobarthurs/queryinsight/internal/trend"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Collect, analyze, and check for regressions on a schedule",
	Long: `Run collect followed by a regression check on a cron schedule until
interrupted. Runs that would overlap a previous one still in progress are
skipped. Regressions are reported through the log.`,
	Example: `  # Use the schedule from config (default every 15 minutes)
  queryinsight watch --profile prod --log-level info

  # Hourly, on the hour
  queryinsight watch --schedule "0 * * * *"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("schedule") {
			cfg.Watch.Schedule, _ = cmd.Flags().GetString("schedule")
		}

		connStr, err := requireConnStr(db, profileName)
		if err != nil {
			return err
		}

		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		logger := slog.Default()

		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc(cfg.Watch.Schedule, func() {
			watchRun(ctx, cfg, connStr, st, logger)
		}); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Watch.Schedule, err)
		}

		logger.Info("watching", "schedule", cfg.Watch.Schedule, "store", cfg.Store)
		c.Start()

		<-ctx.Done()
		<-c.Stop().Done()
		logger.Info("watch stopped")
		return nil
	},
}

func watchRun(ctx context.Context, cfg *config.Config, connStr string, st *store.Store, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()

	results, err := runCollect(ctx, cfg, connStr, st, true)
	if err != nil {
		logger.Error("collect failed", "error", err)
		return
	}

	recent, baseline, err := windowStats(ctx, st, cfg.Trends, time.Now())
	if err != nil {
		logger.Error("trend check failed", "error", err)
		return
	}
	regs := trend.Detect(recent, baseline)
	for _, r := range regs {
		logger.Warn("regression detected",
			"fingerprint", r.Fingerprint,
			"baseline_avg_ms", r.BaselineAvgMs,
			"recent_avg_ms", r.RecentAvgMs,
			"increase_pct", r.IncreasePct,
		)
	}

	logger.Info("watch run complete",
		"analyzed", len(results),
		"regressions", len(regs),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	watchCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	watchCmd.Flags().String("schedule", config.DefaultSchedule, "Cron schedule (5-field or @every/@hourly descriptors)")
	watchCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
