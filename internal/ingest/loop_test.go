package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgersync/internal/models"
)

var t0 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func simpleUpdate(n int) *models.Update {
	id := fmt.Sprintf("u-%d", n)
	return &models.Update{
		UpdateID:       id,
		MigrationEpoch: 1,
		RecordTime:     t0.Add(time.Duration(n) * time.Minute),
		RootEventIDs:   []string{"e-" + id},
		EventsByID: map[string]models.Event{
			"e-" + id: {
				Kind:       models.EventCreated,
				TemplateID: "pkg:M:T",
				ContractID: "c-" + id,
			},
		},
	}
}

// scriptedFetcher serves updates strictly after the requested cursor from
// a fixed in-memory stream, like the real source does.
type scriptedFetcher struct {
	updates    []*models.Update
	failOnCall int // 1-based; 0 never fails
	calls      int
	cursors    []models.Cursor
}

func (f *scriptedFetcher) FetchPage(_ context.Context, after models.Cursor, pageSize int) (models.Page, error) {
	f.calls++
	f.cursors = append(f.cursors, after)
	if f.failOnCall != 0 && f.calls == f.failOnCall {
		return models.Page{}, errors.New("scan query failed with status 503")
	}

	var out []*models.Update
	for _, u := range f.updates {
		if !after.Before(u.Position()) {
			continue
		}
		out = append(out, u)
		if len(out) == pageSize {
			break
		}
	}
	return models.Page{Updates: out}, nil
}

// memorySink is an in-memory Sink with the same dedup semantics as the
// warehouse: re-inserted (event_id, update_id) pairs count zero.
type memorySink struct {
	rows       map[string]models.EventRow
	checkpoint *models.Checkpoint

	appendCalls      int
	checkpointWrites int
	materializeCalls int

	failAppend     bool
	failCheckpoint bool
}

func newMemorySink() *memorySink {
	return &memorySink{rows: make(map[string]models.EventRow)}
}

func (s *memorySink) AppendRows(_ context.Context, rows []models.EventRow) (int, error) {
	s.appendCalls++
	if s.failAppend {
		return 0, errors.New("connection reset by peer")
	}
	inserted := 0
	for _, r := range rows {
		key := r.EventID + "|" + r.UpdateID
		if _, dup := s.rows[key]; dup {
			continue
		}
		s.rows[key] = r
		inserted++
	}
	return inserted, nil
}

func (s *memorySink) ReadCheckpoint(context.Context) (*models.Checkpoint, error) {
	if s.checkpoint == nil {
		return nil, nil
	}
	cp := *s.checkpoint
	return &cp, nil
}

func (s *memorySink) WriteCheckpoint(_ context.Context, cp models.Checkpoint) error {
	if s.failCheckpoint {
		return errors.New("checkpoint table locked")
	}
	s.checkpointWrites++
	if s.checkpoint == nil || s.checkpoint.Before(cp) {
		s.checkpoint = &cp
	}
	return nil
}

func (s *memorySink) MaterializeIncremental(context.Context) (int64, error) {
	s.materializeCalls++
	return int64(len(s.rows)), nil
}

func defaultOptions() Options {
	return Options{PageSize: 10, BatchSize: 100, MaxPages: 10}
}

func TestRunFullBackfill(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{
		simpleUpdate(1), simpleUpdate(2), simpleUpdate(3),
	}}
	sink := newMemorySink()

	sum := New(fetcher, sink, defaultOptions()).Run(context.Background())

	require.True(t, sum.Success, "errors: %v", sum.Errors)
	assert.Equal(t, 3, sum.UpdatesProcessed)
	assert.Equal(t, 3, sum.EventsProcessed)
	assert.Equal(t, 3, sum.RowsInserted)
	assert.Zero(t, sum.Anomalies)

	require.NotNil(t, sink.checkpoint)
	assert.Equal(t, simpleUpdate(3).Position(), *sink.checkpoint)
	assert.True(t, fetcher.cursors[0].IsZero(), "backfill starts from the zero position")
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{
		simpleUpdate(1), simpleUpdate(2), simpleUpdate(3),
	}}
	sink := newMemorySink()
	cp := simpleUpdate(2).Position()
	sink.checkpoint = &cp

	sum := New(fetcher, sink, defaultOptions()).Run(context.Background())

	require.True(t, sum.Success)
	assert.Equal(t, 1, sum.UpdatesProcessed, "only the update past the checkpoint")
	assert.Equal(t, cp, fetcher.cursors[0])
}

func TestRunPersistFailureKeepsCheckpoint(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{simpleUpdate(1)}}
	sink := newMemorySink()
	sink.failAppend = true

	sum := New(fetcher, sink, defaultOptions()).Run(context.Background())

	assert.False(t, sum.Success)
	require.NotEmpty(t, sum.Errors)
	assert.Contains(t, sum.Errors[0], "checkpoint not advanced")
	assert.Nil(t, sink.checkpoint, "checkpoint never moves past unpersisted rows")
	assert.Zero(t, sum.RowsInserted)
}

func TestRunCheckpointFailureReportsButRowsDurable(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{simpleUpdate(1)}}
	sink := newMemorySink()
	sink.failCheckpoint = true

	sum := New(fetcher, sink, defaultOptions()).Run(context.Background())

	assert.False(t, sum.Success)
	assert.Len(t, sink.rows, 1, "rows are durable even when the checkpoint write fails")
	assert.Nil(t, sink.checkpoint)
	assert.Nil(t, sum.FinalCheckpoint)
}

func TestRunFetchFailurePreservesConfirmedProgress(t *testing.T) {
	fetcher := &scriptedFetcher{
		updates:    []*models.Update{simpleUpdate(1), simpleUpdate(2)},
		failOnCall: 2,
	}
	sink := newMemorySink()
	opts := defaultOptions()
	opts.PageSize = 1
	opts.BatchSize = 1

	sum := New(fetcher, sink, opts).Run(context.Background())

	assert.False(t, sum.Success)
	assert.Equal(t, 1, sum.PagesFetched)
	assert.Equal(t, 1, sum.RowsInserted)
	require.NotNil(t, sink.checkpoint, "progress confirmed before the failure stays durable")
	assert.Equal(t, simpleUpdate(1).Position(), *sink.checkpoint)
}

// Crash-recovery shape: rows persisted, checkpoint behind. The re-run
// re-fetches the overlap, the sink deduplicates, and the checkpoint only
// moves forward.
func TestRunIdempotentReplayAfterCheckpointLag(t *testing.T) {
	updates := []*models.Update{simpleUpdate(1), simpleUpdate(2), simpleUpdate(3)}
	sink := newMemorySink()

	first := New(&scriptedFetcher{updates: updates}, sink, defaultOptions()).Run(context.Background())
	require.True(t, first.Success)
	require.Len(t, sink.rows, 3)

	// Simulate a crash between persist and checkpoint advance.
	lag := simpleUpdate(1).Position()
	sink.checkpoint = &lag

	second := New(&scriptedFetcher{updates: updates}, sink, defaultOptions()).Run(context.Background())

	require.True(t, second.Success)
	assert.Equal(t, 2, second.UpdatesProcessed, "overlap re-fetched")
	assert.Zero(t, second.RowsInserted, "re-delivered rows deduplicate to zero")
	assert.Len(t, sink.rows, 3)
	assert.Equal(t, simpleUpdate(3).Position(), *sink.checkpoint, "checkpoint is restored, never regressed")
}

func TestRunHonorsMaxPages(t *testing.T) {
	var many []*models.Update
	for i := 1; i <= 20; i++ {
		many = append(many, simpleUpdate(i))
	}
	fetcher := &scriptedFetcher{updates: many}
	sink := newMemorySink()
	opts := defaultOptions()
	opts.PageSize = 2
	opts.MaxPages = 3

	sum := New(fetcher, sink, opts).Run(context.Background())

	require.True(t, sum.Success)
	assert.Equal(t, 3, sum.PagesFetched)
	assert.Equal(t, 6, sum.UpdatesProcessed)
}

func TestRunBatchFlushing(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{
		simpleUpdate(1), simpleUpdate(2), simpleUpdate(3),
	}}
	sink := newMemorySink()
	opts := defaultOptions()
	opts.BatchSize = 2

	sum := New(fetcher, sink, opts).Run(context.Background())

	require.True(t, sum.Success)
	assert.Equal(t, 2, sink.appendCalls, "one full batch plus the final partial flush")
	assert.Equal(t, 2, sink.checkpointWrites, "checkpoint advances once per confirmed batch")
	assert.Equal(t, 3, sum.RowsInserted)
}

func TestRunMaterializeThreshold(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{
		simpleUpdate(1), simpleUpdate(2),
	}}
	sink := newMemorySink()
	opts := defaultOptions()
	opts.MaterializeThreshold = 2

	sum := New(fetcher, sink, opts).Run(context.Background())

	require.True(t, sum.Success)
	assert.Equal(t, 1, sink.materializeCalls)
	assert.Equal(t, int64(2), sum.MaterializedRows)
}

func TestRunMaterializeSkippedBelowThreshold(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{simpleUpdate(1)}}
	sink := newMemorySink()
	opts := defaultOptions()
	opts.MaterializeThreshold = 100

	sum := New(fetcher, sink, opts).Run(context.Background())

	require.True(t, sum.Success)
	assert.Zero(t, sink.materializeCalls)
}

func TestRunCancelledBeforeFirstPage(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []*models.Update{simpleUpdate(1)}}
	sink := newMemorySink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := New(fetcher, sink, defaultOptions()).Run(ctx)

	assert.False(t, sum.Success)
	assert.Zero(t, fetcher.calls, "cancellation is honored at the page boundary")
	assert.Nil(t, sink.checkpoint)
}

func TestRunMissingChildrenCountedAsAnomalies(t *testing.T) {
	u := simpleUpdate(1)
	ev := u.EventsByID["e-u-1"]
	ev.ChildEventIDs = []string{"e-gone"}
	u.EventsByID["e-u-1"] = ev

	fetcher := &scriptedFetcher{updates: []*models.Update{u}}
	sink := newMemorySink()

	sum := New(fetcher, sink, defaultOptions()).Run(context.Background())

	require.True(t, sum.Success)
	assert.Equal(t, 1, sum.EventsProcessed)
	assert.Equal(t, 1, sum.Anomalies)
}
