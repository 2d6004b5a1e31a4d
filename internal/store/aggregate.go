package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jacobarthurs/queryinsight/internal/trend"
)

// AggregateWindow groups the queries observed in [from, to) by fingerprint.
// Count is the number of observations and the average is taken over them.
func (s *Store) AggregateWindow(ctx context.Context, from, to time.Time) ([]trend.WindowStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, COUNT(*), AVG(execution_time_ms), MAX(observed_at)
		FROM queries
		WHERE observed_at >= ? AND observed_at < ?
		GROUP BY fingerprint
		ORDER BY fingerprint`,
		toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("aggregating queries: %w", err)
	}
	defer rows.Close()

	var out []trend.WindowStat
	for rows.Next() {
		var (
			st       trend.WindowStat
			lastSeen int64
		)
		if err := rows.Scan(&st.Fingerprint, &st.Count, &st.AvgExecTimeMs, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning aggregate: %w", err)
		}
		st.LastSeen = fromMillis(lastSeen)
		out = append(out, st)
	}
	return out, rows.Err()
}
