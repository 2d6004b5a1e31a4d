package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var ErrStatStatementsMissing = errors.New("pg_stat_statements extension is not installed")

// Connect opens a pool to the target database and verifies it is reachable.
func Connect(ctx context.Context, connStr string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

type SlowQuery struct {
	QueryID        string  `json:"query_id"`
	SQLText        string  `json:"sql_text"`
	Calls          int64   `json:"calls"`
	MeanExecTimeMs float64 `json:"mean_exec_time_ms"`
	TotalRows      int64   `json:"total_rows"`
}

type Collector struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{db: db, logger: logger}
}

const extensionQuery = `SELECT count(*) FROM pg_extension WHERE extname = 'pg_stat_statements'`

func (c *Collector) HasStatStatements(ctx context.Context) (bool, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, extensionQuery).Scan(&n); err != nil {
		return false, fmt.Errorf("checking extensions: %w", err)
	}
	return n > 0, nil
}

const slowQueriesQuery = `SELECT queryid, query, calls, total_exec_time / calls AS mean_exec_time_ms, rows
FROM pg_stat_statements
WHERE calls > 0 AND total_exec_time / calls > $1
ORDER BY mean_exec_time_ms DESC
LIMIT $2`

// SlowQueries returns statements whose mean execution time exceeds
// thresholdMs, slowest first.
func (c *Collector) SlowQueries(ctx context.Context, thresholdMs float64, limit int) ([]SlowQuery, error) {
	ok, err := c.HasStatStatements(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStatStatementsMissing
	}

	rows, err := c.db.QueryContext(ctx, slowQueriesQuery, thresholdMs, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pg_stat_statements: %w", err)
	}
	defer rows.Close()

	var out []SlowQuery
	for rows.Next() {
		var (
			q       SlowQuery
			queryID sql.NullInt64
		)
		if err := rows.Scan(&queryID, &q.SQLText, &q.Calls, &q.MeanExecTimeMs, &q.TotalRows); err != nil {
			return nil, fmt.Errorf("scanning pg_stat_statements row: %w", err)
		}
		if queryID.Valid {
			q.QueryID = strconv.FormatInt(queryID.Int64, 10)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pg_stat_statements: %w", err)
	}

	c.logger.Debug("collected slow queries", "count", len(out), "threshold_ms", thresholdMs)
	return out, nil
}
