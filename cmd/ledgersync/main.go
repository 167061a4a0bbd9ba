package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgersync/internal/config"
	"ledgersync/internal/fetcher"
	"ledgersync/internal/fetcher/retry"
	"ledgersync/internal/ingest"
	"ledgersync/internal/projections"
	"ledgersync/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	fmt.Println("🔁 Starting ledger scan ingestion...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"scan_url", cfg.ScanURL,
		"page_size", cfg.PageSize,
		"batch_size", cfg.BatchSize,
		"max_pages", cfg.MaxPages,
		"log_level", cfg.LogLevel,
	)

	// 3. Initialize sink
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink, err := storage.NewPostgresSink(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer sink.Close()

	if err := sink.EnsureSchema(ctx); err != nil {
		log.Fatalf("❌ Failed to ensure schema: %v", err)
	}
	slog.Info("Database connected successfully")

	// 4. Create fetcher with retry
	strategy := retry.NewStrategy(retry.LoadConfig())
	client := fetcher.NewClient(cfg.ScanURL, nil, strategy)

	// 5. Optional metrics endpoint
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		slog.Info("Metrics endpoint enabled", "addr", cfg.MetricsAddr)
	}

	opts := ingest.Options{
		PageSize:             cfg.PageSize,
		BatchSize:            cfg.BatchSize,
		MaxPages:             cfg.MaxPages,
		MaterializeThreshold: cfg.MaterializeThreshold,
	}

	// 6. One-shot run, or re-run on a ticker when POLL_INTERVAL_SEC is set
	if cfg.PollInterval == 0 {
		if ok := runOnce(ctx, client, sink, opts); !ok {
			os.Exit(1)
		}
		return
	}

	slog.Info("Polling mode enabled", "interval", cfg.PollInterval)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	runOnce(ctx, client, sink, opts)
	for {
		select {
		case <-ctx.Done():
			slog.Warn("Interrupt received, shutting down...")
			return
		case <-ticker.C:
			runOnce(ctx, client, sink, opts)
		}
	}
}

// runOnce executes one ingestion run with a fresh projection set and logs
// both the run summary and the derived-state summary.
func runOnce(ctx context.Context, client *fetcher.Client, sink storage.Sink, opts ingest.Options) bool {
	set := projections.NewSet()
	loop := ingest.New(client, sink, opts).WithProjections(set)

	summary := loop.Run(ctx)
	projSummary := set.Summary()

	if !summary.Success {
		slog.Error("Ingestion run failed",
			"run_id", summary.RunID,
			"errors", summary.Errors,
			"pages", summary.PagesFetched,
			"rows_inserted", summary.RowsInserted,
		)
		return false
	}

	state, _ := json.Marshal(projSummary)
	slog.Info("Ingestion run succeeded",
		"run_id", summary.RunID,
		"pages", summary.PagesFetched,
		"updates", summary.UpdatesProcessed,
		"events", summary.EventsProcessed,
		"rows_inserted", summary.RowsInserted,
		"anomalies", summary.Anomalies,
		"duration_ms", summary.Duration.Milliseconds(),
		"derived_state", string(state),
	)
	return true
}
