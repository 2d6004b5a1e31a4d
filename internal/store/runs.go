package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CollectionRun summarizes one pass over pg_stat_statements. AvgExecTimeMs
// is the mean of the collected statements' mean execution times.
type CollectionRun struct {
	ID            string    `json:"id"`
	CollectedAt   time.Time `json:"collected_at"`
	ThresholdMs   float64   `json:"threshold_ms"`
	QueryCount    int       `json:"query_count"`
	TotalCalls    int64     `json:"total_calls"`
	AvgExecTimeMs float64   `json:"avg_exec_time_ms"`
}

func SummarizeRun(thresholdMs float64, queries []QueryRecord) CollectionRun {
	run := CollectionRun{ThresholdMs: thresholdMs, QueryCount: len(queries)}
	if len(queries) == 0 {
		return run
	}

	var sum float64
	for _, q := range queries {
		sum += q.ExecutionTimeMs
		run.TotalCalls += q.Calls
	}
	run.AvgExecTimeMs = sum / float64(len(queries))
	return run
}

func (s *Store) SaveRun(ctx context.Context, run *CollectionRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CollectedAt.IsZero() {
		run.CollectedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_runs (id, collected_at, threshold_ms, query_count, total_calls, avg_exec_time_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, toMillis(run.CollectedAt), run.ThresholdMs, run.QueryCount, run.TotalCalls, run.AvgExecTimeMs,
	)
	if err != nil {
		return fmt.Errorf("saving collection run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent collection runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]CollectionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collected_at, threshold_ms, query_count, total_calls, avg_exec_time_ms
		FROM collection_runs
		ORDER BY collected_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing collection runs: %w", err)
	}
	defer rows.Close()

	var out []CollectionRun
	for rows.Next() {
		var (
			r           CollectionRun
			collectedAt int64
		)
		if err := rows.Scan(&r.ID, &collectedAt, &r.ThresholdMs, &r.QueryCount, &r.TotalCalls, &r.AvgExecTimeMs); err != nil {
			return nil, fmt.Errorf("scanning collection run: %w", err)
		}
		r.CollectedAt = fromMillis(collectedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
