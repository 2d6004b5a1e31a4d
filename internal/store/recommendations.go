package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

// RecommendationRecord is a stored recommendation with its review status.
type RecommendationRecord struct {
	ID      string `json:"id"`
	QueryID string `json:"query_id"`
	recommendation.Recommendation
	Status    recommendation.Status `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	AppliedAt *time.Time            `json:"applied_at,omitempty"`
}

// SaveRecommendations stores recs for queryID as pending, in one transaction.
// Nothing is stored if any recommendation has an unknown kind.
func (s *Store) SaveRecommendations(ctx context.Context, queryID string, recs []recommendation.Recommendation) ([]RecommendationRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	for _, rec := range recs {
		if !rec.Kind.Valid() {
			return nil, fmt.Errorf("invalid recommendation kind %q", rec.Kind)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations
			(id, query_id, kind, title, description, sql_suggestion, estimated_impact, confidence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	out := make([]RecommendationRecord, 0, len(recs))
	for _, rec := range recs {
		r := RecommendationRecord{
			ID:             uuid.NewString(),
			QueryID:        queryID,
			Recommendation: rec,
			Status:         recommendation.Pending,
			CreatedAt:      fromMillis(toMillis(now)),
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.QueryID, string(rec.Kind), rec.Title, rec.Description, nullString(rec.SQLSuggestion),
			rec.EstimatedImpact, rec.Confidence, string(r.Status), toMillis(now),
		)
		if err != nil {
			return nil, fmt.Errorf("saving recommendation: %w", err)
		}
		out = append(out, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing recommendations: %w", err)
	}
	return out, nil
}

// RecommendationFilter narrows ListRecommendations. Zero fields match all.
type RecommendationFilter struct {
	QueryID   string
	Status    recommendation.Status
	MinImpact float64
	Limit     int
}

// ListRecommendations returns matching recommendations, highest impact first.
func (s *Store) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]RecommendationRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.QueryID != "" {
		where = append(where, "query_id = ?")
		args = append(args, f.QueryID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinImpact > 0 {
		where = append(where, "estimated_impact >= ?")
		args = append(args, f.MinImpact)
	}

	q := `SELECT id, query_id, kind, title, description, sql_suggestion, estimated_impact, confidence, status, created_at, applied_at
		FROM recommendations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY estimated_impact DESC, created_at, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing recommendations: %w", err)
	}
	defer rows.Close()

	var out []RecommendationRecord
	for rows.Next() {
		var (
			r         RecommendationRecord
			kind      string
			status    string
			sqlSugg   sql.NullString
			createdAt int64
			appliedAt sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.QueryID, &kind, &r.Title, &r.Description, &sqlSugg,
			&r.EstimatedImpact, &r.Confidence, &status, &createdAt, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		r.Kind = recommendation.Kind(kind)
		r.Status = recommendation.Status(status)
		r.SQLSuggestion = sqlSugg.String
		r.CreatedAt = fromMillis(createdAt)
		if appliedAt.Valid {
			t := fromMillis(appliedAt.Int64)
			r.AppliedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetStatus updates the review status of a recommendation. Applied
// recommendations record when they were applied.
func (s *Store) SetStatus(ctx context.Context, id string, status recommendation.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	var appliedAt sql.NullInt64
	if status == recommendation.Applied {
		appliedAt = sql.NullInt64{Int64: toMillis(s.now()), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET status = ?, applied_at = ? WHERE id = ?`,
		string(status), appliedAt, id)
	if err != nil {
		return fmt.Errorf("updating recommendation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating recommendation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
