/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/jacobarthurs/queryinsight/internal/config"
	"github.com/jacobarthurs/queryinsight/internal/store"

	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
}

var rootCmd = &cobra.Command{
	Use:          "queryinsight",
	SilenceUsage: true,
	Short:        "Find slow PostgreSQL queries and recommend fixes",
	Long: `queryinsight collects slow queries from pg_stat_statements, analyzes their
execution plans, and produces ranked optimization recommendations.

Queries without a usable plan fall back to query text heuristics. Every
observation is fingerprinted and stored locally so performance regressions
can be detected over time.`,
	Example: `  # Analyze a single query
  queryinsight analyze query.sql --profile prod

  # Collect and analyze the slowest queries
  queryinsight collect --profile prod

  # Show queries that got slower
  queryinsight trends`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")

		logger, err := newLogger(cmd.ErrOrStderr(), level, format)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().String("store", "", "Path to the local store (overrides config)")
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"text\" or \"json\"", format)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("store"); path != "" {
		cfg.Store = path
	}
	return cfg, nil
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.Store, err)
	}
	return st, nil
}

func validateFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
	}
	return nil
}
