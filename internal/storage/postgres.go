package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ledgersync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink implements the Sink interface using PostgreSQL
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a new PostgreSQL sink
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{
		pool: pool,
	}, nil
}

// EnsureSchema creates the raw event table and checkpoint singleton if
// they do not exist. The derived/materialized tables belong to the
// external transformation SQL, not to this process.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS event_rows (
			event_id        text NOT NULL,
			update_id       text NOT NULL,
			migration_epoch bigint NOT NULL,
			record_time     timestamptz NOT NULL,
			template_id     text NOT NULL DEFAULT '',
			event_kind      text NOT NULL,
			contract_id     text NOT NULL DEFAULT '',
			choice          text,
			consuming       boolean,
			signatories     jsonb,
			observers       jsonb,
			acting_parties  jsonb,
			witness_parties jsonb,
			child_event_ids jsonb,
			payload         text,
			choice_argument text,
			exercise_result text,
			contract_key    text,
			PRIMARY KEY (event_id, update_id)
		)`,
		`CREATE INDEX IF NOT EXISTS event_rows_position_idx
			ON event_rows (migration_epoch, record_time)`,
		`CREATE TABLE IF NOT EXISTS ingestion_checkpoint (
			id              smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			migration_epoch bigint NOT NULL,
			record_time     timestamptz NOT NULL
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// AppendRows inserts event rows in a single transaction. Conflicting rows
// are skipped, which is what makes at-least-once re-ingestion harmless;
// the returned count covers only rows actually inserted.
func (s *PostgresSink) AppendRows(ctx context.Context, rows []models.EventRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO event_rows (
			event_id, update_id, migration_epoch, record_time,
			template_id, event_kind, contract_id, choice, consuming,
			signatories, observers, acting_parties, witness_parties,
			child_event_ids, payload, choice_argument, exercise_result,
			contract_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (event_id, update_id) DO NOTHING
	`

	inserted := 0
	for _, row := range rows {
		signatories, err := json.Marshal(row.Signatories)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal signatories: %w", err)
		}
		observers, err := json.Marshal(row.Observers)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal observers: %w", err)
		}
		actingParties, err := json.Marshal(row.ActingParties)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal acting_parties: %w", err)
		}
		witnessParties, err := json.Marshal(row.WitnessParties)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal witness_parties: %w", err)
		}
		childEventIDs, err := json.Marshal(row.ChildEventIDs)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal child_event_ids: %w", err)
		}

		tag, err := tx.Exec(ctx, query,
			row.EventID,
			row.UpdateID,
			row.MigrationEpoch,
			row.RecordTime,
			row.TemplateID,
			row.EventKind,
			row.ContractID,
			row.Choice,
			row.Consuming,
			signatories,
			observers,
			actingParties,
			witnessParties,
			childEventIDs,
			row.Payload,
			row.ChoiceArgument,
			row.ExerciseResult,
			row.ContractKey,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event row: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// ReadCheckpoint returns the singleton checkpoint, or nil when ingestion
// has never run against this database.
func (s *PostgresSink) ReadCheckpoint(ctx context.Context) (*models.Checkpoint, error) {
	query := `SELECT migration_epoch, record_time FROM ingestion_checkpoint WHERE id = 1`

	var cp models.Checkpoint
	err := s.pool.QueryRow(ctx, query).Scan(&cp.MigrationEpoch, &cp.RecordTime)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	return &cp, nil
}

// WriteCheckpoint upserts the singleton checkpoint. The update refuses to
// move the position backward, so an overlapping re-run can never regress
// the high-water mark.
func (s *PostgresSink) WriteCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	query := `
		INSERT INTO ingestion_checkpoint (id, migration_epoch, record_time)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET migration_epoch = EXCLUDED.migration_epoch,
		    record_time     = EXCLUDED.record_time
		WHERE (EXCLUDED.migration_epoch, EXCLUDED.record_time)
		    >= (ingestion_checkpoint.migration_epoch, ingestion_checkpoint.record_time)
	`

	if _, err := s.pool.Exec(ctx, query, cp.MigrationEpoch, cp.RecordTime); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// MaterializeIncremental invokes the warehouse-side transformation
// function and returns the number of rows it affected. The SQL itself is
// owned by the warehouse, not by this process.
func (s *PostgresSink) MaterializeIncremental(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := s.pool.QueryRow(ctx, `SELECT materialize_incremental()`).Scan(&rowsAffected)
	if err != nil {
		return 0, fmt.Errorf("failed to materialize: %w", err)
	}
	return rowsAffected, nil
}

// Ping checks if the database connection is alive
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
