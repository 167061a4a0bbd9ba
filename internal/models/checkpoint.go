package models

import "time"

// Cursor is a position in the update stream: the (epoch, record_time)
// pair the next fetch resumes after.
type Cursor struct {
	MigrationEpoch int64     `json:"migration_epoch"`
	RecordTime     time.Time `json:"record_time"`
}

// Checkpoint is the durable high-water mark: the last position whose rows
// are confirmed persisted. Same shape as Cursor, singleton in the sink.
type Checkpoint = Cursor

// Before reports whether c is strictly earlier than other, ordering by
// epoch first and record time within an epoch.
func (c Cursor) Before(other Cursor) bool {
	if c.MigrationEpoch != other.MigrationEpoch {
		return c.MigrationEpoch < other.MigrationEpoch
	}
	return c.RecordTime.Before(other.RecordTime)
}

// IsZero reports whether c is the unset position (full backfill).
func (c Cursor) IsZero() bool {
	return c.MigrationEpoch == 0 && c.RecordTime.IsZero()
}
