package collector

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*Collector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, slog.New(slog.DiscardHandler)), mock
}

func expectExtension(mock sqlmock.Sqlmock, count int64) {
	mock.ExpectQuery(extensionQuery).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestSlowQueries(t *testing.T) {
	c, mock := newTestCollector(t)

	expectExtension(mock, 1)
	mock.ExpectQuery(slowQueriesQuery).
		WithArgs(10.0, 20).
		WillReturnRows(sqlmock.NewRows([]string{"queryid", "query", "calls", "mean_exec_time_ms", "rows"}).
			AddRow(int64(-4213195273635942373), "SELECT * FROM orders WHERE user_id = $1", int64(812), 154.2, int64(90211)).
			AddRow(nil, "SELECT count(*) FROM events", int64(3), 48.0, int64(3)))

	got, err := c.SlowQueries(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "-4213195273635942373", got[0].QueryID)
	assert.Equal(t, "SELECT * FROM orders WHERE user_id = $1", got[0].SQLText)
	assert.Equal(t, int64(812), got[0].Calls)
	assert.Equal(t, 154.2, got[0].MeanExecTimeMs)
	assert.Equal(t, int64(90211), got[0].TotalRows)
	assert.Empty(t, got[1].QueryID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlowQueries_ExtensionMissing(t *testing.T) {
	c, mock := newTestCollector(t)

	expectExtension(mock, 0)

	_, err := c.SlowQueries(context.Background(), 10, 20)
	assert.ErrorIs(t, err, ErrStatStatementsMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlowQueries_QueryError(t *testing.T) {
	c, mock := newTestCollector(t)

	expectExtension(mock, 1)
	mock.ExpectQuery(slowQueriesQuery).
		WithArgs(5.0, 1).
		WillReturnError(errors.New("permission denied for view pg_stat_statements"))

	_, err := c.SlowQueries(context.Background(), 5, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying pg_stat_statements")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasStatStatements_Error(t *testing.T) {
	c, mock := newTestCollector(t)

	mock.ExpectQuery(extensionQuery).WillReturnError(errors.New("connection reset"))

	_, err := c.HasStatStatements(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checking extensions")
}

func TestConnect_InvalidConnString(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://user@host:notaport/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing connection string")
}
