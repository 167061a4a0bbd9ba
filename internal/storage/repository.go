package storage

import (
	"context"

	"ledgersync/internal/models"
)

// Sink is the destination warehouse contract used by the ingestion loop.
// AppendRows must tolerate re-inserted rows (at-least-once delivery);
// the returned count covers only rows confirmed durable.
type Sink interface {
	AppendRows(ctx context.Context, rows []models.EventRow) (int, error)

	// ReadCheckpoint returns the last durable position, or nil when no
	// checkpoint exists yet (full backfill).
	ReadCheckpoint(ctx context.Context) (*models.Checkpoint, error)
	WriteCheckpoint(ctx context.Context, cp models.Checkpoint) error

	// MaterializeIncremental triggers the external transformation SQL
	// and returns the number of rows it affected.
	MaterializeIncremental(ctx context.Context) (int64, error)
}
