package learning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS learning_records (
            id INTEGER PRIMARY KEY,
            failed_subtask TEXT NOT NULL,
            failure_reason TEXT NOT NULL,
            agent_selected TEXT NOT NULL,
            reasoning TEXT NOT NULL,
            mitigation_task TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	sqlLockTable = `LOCK TABLE learning_records IN SHARE ROW EXCLUSIVE MODE;`
	sqlInsert    = `
        INSERT INTO learning_records (id, failed_subtask, failure_reason, agent_selected, reasoning, mitigation_task)
        SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5 FROM learning_records
        RETURNING id;
    `
	sqlSelectAll = `
        SELECT id, failed_subtask, failure_reason, agent_selected, reasoning, mitigation_task
        FROM learning_records
        ORDER BY id ASC;
    `
)

// PostgresStore keeps records in the learning_records table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore verifies the connection and returns a store.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("learning.postgres")}, nil
}

// EnsureSchema creates the table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateTable); err != nil {
		return fmt.Errorf("failed to create learning_records: %w", err)
	}
	return nil
}

// Append inserts r under a table lock so concurrent runs never share an ID.
func (s *PostgresStore) Append(ctx context.Context, r Record) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlLockTable); err != nil {
		return 0, fmt.Errorf("failed to lock learning_records: %w", err)
	}
	var id int64
	err = tx.QueryRow(ctx, sqlInsert, r.FailedSubtask, r.FailureReason, r.AgentSelected, r.Reasoning, r.MitigationTask).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert learning record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Learning record appended", zap.Int64("id", id), zap.String("agent", r.AgentSelected))
	return int(id), nil
}

// ReadAll returns every record ordered by ID.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, sqlSelectAll)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r  Record
			id int64
		)
		if err := rows.Scan(&id, &r.FailedSubtask, &r.FailureReason, &r.AgentSelected, &r.Reasoning, &r.MitigationTask); err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}
		r.ID = int(id)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
