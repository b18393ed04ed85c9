package learning

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher makes SQL expectations insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var sample = Record{
	FailedSubtask:  "Click on the search button",
	FailureReason:  "bottom sheet covered the button",
	AgentSelected:  "search_widget",
	Reasoning:      "the widget owns the sheet",
	MitigationTask: "Close the bottom sheet",
}

func newMockStore(t *testing.T, logger *zap.Logger) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	store, err := NewPostgresStore(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return store, mockPool
}

func TestNewPostgresStore_PingFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateTable)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	t.Run("assigns the next id under a table lock", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newMockStore(t, zap.New(core))

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlLockTable)).
			WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsert)).
			WithArgs(sample.FailedSubtask, sample.FailureReason, sample.AgentSelected, sample.Reasoning, sample.MitigationTask).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		id, err := store.Append(context.Background(), sample)
		require.NoError(t, err)
		assert.Equal(t, 3, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "no rollback error after a commit")
	})

	t.Run("rolls back when the insert fails", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())

		insertErr := errors.New("unique violation")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlLockTable)).
			WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsert)).
			WithArgs(sample.FailedSubtask, sample.FailureReason, sample.AgentSelected, sample.Reasoning, sample.MitigationTask).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		_, err := store.Append(context.Background(), sample)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		_, err := store.Append(context.Background(), sample)
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresStore_ReadAll(t *testing.T) {
	store, mockPool := newMockStore(t, zap.NewNop())

	cols := []string{"id", "failed_subtask", "failure_reason", "agent_selected", "reasoning", "mitigation_task"}
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectAll)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(1), "a", "b", "lob", "c", "d").
			AddRow(int64(2), sample.FailedSubtask, sample.FailureReason, sample.AgentSelected, sample.Reasoning, sample.MitigationTask))

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	want := sample
	want.ID = 2
	assert.Equal(t, want, got[1])
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
