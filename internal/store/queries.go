package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jacobarthurs/queryinsight/internal/plan"
)

const (
	SourceManual    = "manual"
	SourceCollector = "pg_stat_statements"
)

// QueryRecord is one observation of a query. Calls is the number of
// executions the observation covers and ExecutionTimeMs their mean.
type QueryRecord struct {
	ID              string              `json:"id"`
	Source          string              `json:"source"`
	SQLText         string              `json:"sql_text"`
	Fingerprint     string              `json:"fingerprint"`
	ExecutionTimeMs float64             `json:"execution_time_ms"`
	Calls           int64               `json:"calls"`
	Plan            *plan.ExplainOutput `json:"explain_plan,omitempty"`
	ObservedAt      time.Time           `json:"observed_at"`
}

// SaveQuery inserts q, assigning an ID and observation time when unset.
func (s *Store) SaveQuery(ctx context.Context, q *QueryRecord) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Source == "" {
		q.Source = SourceManual
	}
	if q.Calls <= 0 {
		q.Calls = 1
	}
	if q.ObservedAt.IsZero() {
		q.ObservedAt = s.now()
	}

	planJSON, err := marshalPlan(q.Plan)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queries (id, source, sql_text, fingerprint, execution_time_ms, calls, explain_plan, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Source, q.SQLText, q.Fingerprint, q.ExecutionTimeMs, q.Calls, planJSON, toMillis(q.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("saving query: %w", err)
	}
	return nil
}

const queryColumns = `id, source, sql_text, fingerprint, execution_time_ms, calls, explain_plan, observed_at`

func (s *Store) GetQuery(ctx context.Context, id string) (QueryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id)
	q, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return QueryRecord{}, fmt.Errorf("query %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return QueryRecord{}, fmt.Errorf("loading query: %w", err)
	}
	return q, nil
}

// ListQueries returns the most recently observed queries first.
func (s *Store) ListQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries ORDER BY observed_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// AttachPlan stores p as the execution plan of query id.
func (s *Store) AttachPlan(ctx context.Context, id string, p *plan.ExplainOutput) error {
	planJSON, err := marshalPlan(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE queries SET explain_plan = ? WHERE id = ?`, planJSON, id)
	if err != nil {
		return fmt.Errorf("attaching plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attaching plan: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("query %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuery(sc scanner) (QueryRecord, error) {
	var (
		q          QueryRecord
		planJSON   sql.NullString
		observedAt int64
	)
	if err := sc.Scan(&q.ID, &q.Source, &q.SQLText, &q.Fingerprint, &q.ExecutionTimeMs, &q.Calls, &planJSON, &observedAt); err != nil {
		return QueryRecord{}, err
	}
	q.ObservedAt = fromMillis(observedAt)

	if planJSON.Valid && planJSON.String != "" {
		p, err := plan.Parse([]byte(planJSON.String))
		if err != nil {
			return QueryRecord{}, fmt.Errorf("decoding stored plan for %s: %w", q.ID, err)
		}
		q.Plan = &p
	}
	return q, nil
}

func marshalPlan(p *plan.ExplainOutput) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding plan: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
