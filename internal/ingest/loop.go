// Package ingest contains the fetch-and-checkpoint loop at the heart of
// the pipeline. Each run cycles between two states, fetching one bounded
// page and persisting the flattened rows, and advances the durable
// checkpoint only after the sink has confirmed the batch. A crash between
// persist and checkpoint advance re-fetches and re-persists the same
// range on the next run: at-least-once, never silent loss.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledgersync/internal/eventtree"
	"ledgersync/internal/metrics"
	"ledgersync/internal/models"
	"ledgersync/internal/projections"
	"ledgersync/internal/storage"
)

// Loop orchestrates Fetcher -> Decoder -> row flattening -> batching ->
// sink persistence -> checkpoint advance. Fetch and persist are strictly
// sequential within a run; the only safe parallelism is across
// independently orchestrated runs over disjoint epoch ranges, which is
// the orchestrator's call, not this type's.
type Loop struct {
	fetcher PageFetcher
	sink    storage.Sink
	opts    Options

	// Optional: when set, every decoded event also feeds the projection
	// accumulators so callers get live derived state.
	projs *projections.Set
}

// New creates a Loop over a fetcher and sink.
func New(fetcher PageFetcher, sink storage.Sink, opts Options) *Loop {
	return &Loop{fetcher: fetcher, sink: sink, opts: opts}
}

// WithProjections attaches a projection set fed during ingestion.
func (l *Loop) WithProjections(set *projections.Set) *Loop {
	l.projs = set
	return l
}

// Run executes one ingestion run and always returns a structured summary.
// The run ends when a page comes back empty (caught up), the page bound
// is reached, or a fatal error occurs; confirmed checkpoint progress is
// preserved in every case.
func (l *Loop) Run(ctx context.Context) RunSummary {
	start := time.Now()
	sum := RunSummary{RunID: uuid.NewString(), Success: true}
	defer func() { sum.Duration = time.Since(start) }()

	cursor, err := l.resumePosition(ctx, &sum)
	if err != nil {
		return sum
	}

	batch := make([]models.EventRow, 0, l.opts.BatchSize)
	var batchEnd models.Cursor

	for page := 0; page < l.opts.MaxPages; page++ {
		// Cancellation is honored at page boundaries only; an in-flight
		// page always finishes. Buffered-but-unpersisted rows are simply
		// re-fetched next run, nothing needs rollback.
		if err := ctx.Err(); err != nil {
			sum.fail(fmt.Sprintf("run cancelled at page boundary: %v", err))
			return sum
		}

		fetchStart := time.Now()
		p, err := l.fetcher.FetchPage(ctx, cursor, l.opts.PageSize)
		metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			// Retries are already exhausted inside the fetcher. Abort
			// without moving the checkpoint; the range is re-fetched on
			// the next run.
			metrics.ErrorsTotal.WithLabelValues("fetch").Inc()
			sum.fail(fmt.Sprintf("fetch after (%d, %s) failed: %v",
				cursor.MigrationEpoch, cursor.RecordTime.Format(time.RFC3339), err))
			return sum
		}
		sum.PagesFetched++
		metrics.PagesFetched.Inc()

		if p.Anomalies > 0 {
			sum.Anomalies += p.Anomalies
			metrics.DecodeAnomalies.WithLabelValues("wire").Add(float64(p.Anomalies))
		}

		if len(p.Updates) == 0 {
			slog.Info("Caught up with the source", "pages_fetched", sum.PagesFetched)
			break
		}

		for _, u := range p.Updates {
			skipped := eventtree.Walk(u, func(v eventtree.Visit) bool {
				batch = append(batch, eventtree.Row(u, v))
				if l.projs != nil {
					l.projs.Apply(v.Event, v.EventID, u.UpdateID, u.RecordTime)
				}
				sum.EventsProcessed++
				metrics.EventsProcessed.WithLabelValues(string(v.Event.Kind)).Inc()
				return true
			})
			if skipped > 0 {
				sum.Anomalies += skipped
				metrics.DecodeAnomalies.WithLabelValues("missing_child").Add(float64(skipped))
			}
			sum.UpdatesProcessed++
			metrics.UpdatesProcessed.Inc()
			batchEnd = u.Position()

			if len(batch) >= l.opts.BatchSize {
				if err := l.flush(ctx, &sum, batch, batchEnd); err != nil {
					sum.fail(err.Error())
					return sum
				}
				batch = batch[:0]
			}
		}

		if p.NextCursor != nil {
			cursor = *p.NextCursor
		} else {
			cursor = batchEnd
		}
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, &sum, batch, batchEnd); err != nil {
			sum.fail(err.Error())
			return sum
		}
	}

	if l.opts.MaterializeThreshold > 0 && sum.RowsInserted >= l.opts.MaterializeThreshold {
		rows, err := l.sink.MaterializeIncremental(ctx)
		if err != nil {
			// Materialization is downstream of the durable copy; its
			// failure does not invalidate ingested progress.
			metrics.ErrorsTotal.WithLabelValues("materialize").Inc()
			sum.fail(fmt.Sprintf("materialize failed: %v", err))
			return sum
		}
		sum.MaterializedRows = rows
		slog.Info("Incremental materialization triggered",
			"rows_inserted", sum.RowsInserted,
			"rows_affected", rows,
		)
	}

	slog.Info("Ingestion run finished",
		"run_id", sum.RunID,
		"pages", sum.PagesFetched,
		"updates", sum.UpdatesProcessed,
		"events", sum.EventsProcessed,
		"rows_inserted", sum.RowsInserted,
		"anomalies", sum.Anomalies,
	)
	return sum
}

// resumePosition seeds the cursor from the last durable checkpoint, or
// the zero position when none exists (full backfill).
func (l *Loop) resumePosition(ctx context.Context, sum *RunSummary) (models.Cursor, error) {
	cp, err := l.sink.ReadCheckpoint(ctx)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("checkpoint").Inc()
		sum.fail(fmt.Sprintf("failed to read checkpoint: %v", err))
		return models.Cursor{}, err
	}
	if cp == nil {
		slog.Info("No checkpoint found, starting full backfill", "run_id", sum.RunID)
		return models.Cursor{}, nil
	}
	slog.Info("Resuming from checkpoint",
		"run_id", sum.RunID,
		"epoch", cp.MigrationEpoch,
		"record_time", cp.RecordTime,
	)
	return *cp, nil
}

// flush persists one batch and then, only on confirmed persistence,
// advances the checkpoint to the position of the batch's last update.
// This ordering is the crash-safety invariant.
func (l *Loop) flush(ctx context.Context, sum *RunSummary, batch []models.EventRow, end models.Cursor) error {
	persistStart := time.Now()
	inserted, err := l.sink.AppendRows(ctx, batch)
	metrics.PersistDuration.Observe(time.Since(persistStart).Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("persist").Inc()
		return fmt.Errorf("persist of %d rows failed, checkpoint not advanced: %w", len(batch), err)
	}
	sum.RowsInserted += inserted
	metrics.RowsInserted.Add(float64(inserted))
	metrics.BatchInsertSize.Observe(float64(len(batch)))

	if err := l.sink.WriteCheckpoint(ctx, end); err != nil {
		// Rows are durable but the checkpoint did not move; the next run
		// re-fetches the range and the sink deduplicates.
		metrics.ErrorsTotal.WithLabelValues("checkpoint").Inc()
		return fmt.Errorf("checkpoint advance to (%d, %s) failed: %w",
			end.MigrationEpoch, end.RecordTime.Format(time.RFC3339), err)
	}

	cp := end
	sum.FinalCheckpoint = &cp
	metrics.CheckpointEpoch.Set(float64(end.MigrationEpoch))
	metrics.CheckpointRecordTime.Set(float64(end.RecordTime.Unix()))

	slog.Debug("Batch persisted and checkpoint advanced",
		"rows", len(batch),
		"inserted", inserted,
		"epoch", end.MigrationEpoch,
		"record_time", end.RecordTime,
	)
	return nil
}
