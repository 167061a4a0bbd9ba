package ingest

import (
	"context"
	"time"

	"ledgersync/internal/models"
)

// PageFetcher yields ordered batches of updates after a cursor. Retry and
// failover against the source API live behind this interface; when
// FetchPage returns an error, retries are already exhausted.
type PageFetcher interface {
	FetchPage(ctx context.Context, after models.Cursor, pageSize int) (models.Page, error)
}

// Options configure a single ingestion run.
type Options struct {
	// PageSize bounds each fetch.
	PageSize int
	// BatchSize is the number of buffered rows that triggers a persist.
	BatchSize int
	// MaxPages bounds pages per invocation so every run terminates.
	MaxPages int
	// MaterializeThreshold triggers downstream materialization once the
	// cumulative inserted-row count crosses it. Zero disables.
	MaterializeThreshold int
}

// RunSummary is the structured result of one ingestion run. Partial
// success (some pages processed, then a fatal error) is reported as
// failure while all confirmed checkpoint progress is preserved.
type RunSummary struct {
	RunID   string   `json:"run_id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`

	PagesFetched     int `json:"pages_fetched"`
	UpdatesProcessed int `json:"updates_processed"`
	EventsProcessed  int `json:"events_processed"`
	RowsInserted     int `json:"rows_inserted"`
	Anomalies        int `json:"errors_encountered"`

	MaterializedRows int64              `json:"materialized_rows"`
	FinalCheckpoint  *models.Checkpoint `json:"final_checkpoint,omitempty"`
	Duration         time.Duration      `json:"duration"`
}

func (s *RunSummary) fail(msg string) {
	s.Success = false
	s.Errors = append(s.Errors, msg)
}
