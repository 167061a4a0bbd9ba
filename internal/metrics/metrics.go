package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - track ingestion volume
var (
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_pages_fetched_total",
		Help: "Total number of update pages fetched from the scan API",
	})

	UpdatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_updates_processed_total",
		Help: "Total number of updates decoded and flattened",
	})

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_events_processed_total",
			Help: "Total number of events visited by kind",
		},
		[]string{"event_kind"},
	)

	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_rows_inserted_total",
		Help: "Total number of event rows confirmed inserted into the sink",
	})
)

// Anomaly and error metrics
var (
	DecodeAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_decode_anomalies_total",
			Help: "Total number of decode anomalies recovered locally by kind",
		},
		[]string{"kind"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_errors_total",
			Help: "Total number of run-fatal errors by stage",
		},
		[]string{"stage"},
	)
)

// Performance metrics
var (
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgersync_fetch_duration_seconds",
		Help:    "Time taken to fetch one page from the scan API",
		Buckets: prometheus.DefBuckets,
	})

	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgersync_persist_duration_seconds",
		Help:    "Time taken to persist one batch of event rows",
		Buckets: prometheus.DefBuckets,
	})

	BatchInsertSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgersync_batch_insert_size",
		Help:    "Number of rows in each batch persisted to the sink",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
	})
)

// State metrics - track the durable checkpoint position
var (
	CheckpointEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgersync_checkpoint_epoch",
		Help: "Migration epoch of the last durable checkpoint",
	})

	CheckpointRecordTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgersync_checkpoint_record_time_seconds",
		Help: "Record time of the last durable checkpoint as a unix timestamp",
	})
)
