package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seqScanPlan = `[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "orders", "Total Cost": 431.0, "Plan Rows": 20000}}]`

func newMock(t *testing.T) (*Fetcher, sqlmock.Sqlmock, func(...FetcherOption) *Fetcher) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	build := func(opts ...FetcherOption) *Fetcher { return NewFetcher(db, opts...) }
	return build(), mock, build
}

func TestIsSelect(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from users", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"UPDATE users SET name = 'x'", false},
		{"DELETE FROM users", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSelect(tt.sql); got != tt.want {
			t.Errorf("IsSelect(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestFetchPlan_NonSelectSkipsDatabase(t *testing.T) {
	f, mock, _ := newMock(t)

	out, err := f.FetchPlan(context.Background(), "DELETE FROM orders WHERE id = 1")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlan_ExplainAnalyzeRolledBack(t *testing.T) {
	f, mock, _ := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) SELECT * FROM orders WHERE status = 'open'").
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(seqScanPlan))
	mock.ExpectRollback()

	out, err := f.FetchPlan(context.Background(), "SELECT * FROM orders WHERE status = 'open';")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "Seq Scan", out.Plan.NodeType)
	assert.Equal(t, "orders", out.Plan.RelationName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlan_WithoutAnalyze(t *testing.T) {
	_, mock, build := newMock(t)
	f := build(WithAnalyze(false))

	mock.ExpectBegin()
	mock.ExpectQuery("EXPLAIN (FORMAT JSON) SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(seqScanPlan))
	mock.ExpectRollback()

	_, err := f.FetchPlan(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlan_ParameterizedUsesGenericPlan(t *testing.T) {
	f, mock, _ := newMock(t)

	stmt := "SELECT * FROM orders WHERE user_id = $1 AND created_at > $2"
	mock.ExpectExec("PREPARE queryinsight_explain AS " + stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL plan_cache_mode = force_generic_plan").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("EXPLAIN (FORMAT JSON) EXECUTE queryinsight_explain(null, null)").
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(seqScanPlan))
	mock.ExpectRollback()
	mock.ExpectExec("DEALLOCATE queryinsight_explain").WillReturnResult(sqlmock.NewResult(0, 0))

	out, err := f.FetchPlan(context.Background(), stmt)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, int64(20000), out.Plan.PlanRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlan_ExplainError(t *testing.T) {
	f, mock, _ := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) SELECT * FROM missing").
		WillReturnError(errors.New(`relation "missing" does not exist`))
	mock.ExpectRollback()

	_, err := f.FetchPlan(context.Background(), "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing EXPLAIN")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholderCount(t *testing.T) {
	assert.Equal(t, 0, placeholderCount("SELECT 1"))
	assert.Equal(t, 1, placeholderCount("SELECT * FROM t WHERE a = $1 OR b = $1"))
	assert.Equal(t, 3, placeholderCount("SELECT * FROM t WHERE a = $3 AND b = $1"))
}
