// Package retry provides the retry strategies wrapped around page
// fetches. Exhausted retries surface the last error to the ingestion
// loop, which aborts the run without moving the checkpoint.
package retry

import (
	"context"
	"log/slog"
)

// Operation is a single retryable attempt.
type Operation func() error

// Strategy defines the interface for retry strategies.
type Strategy interface {
	// Execute runs the operation with the configured retry logic.
	Execute(ctx context.Context, operation Operation) error

	// Name returns the name of the strategy for logging.
	Name() string
}

// NewStrategy creates a retry strategy based on configuration.
func NewStrategy(config Config) Strategy {
	if !config.Enabled {
		slog.Info("Retry disabled, using NoRetryStrategy")
		return NewNoRetryStrategy()
	}

	slog.Info("Retry enabled, using ExponentialBackoffStrategy",
		"max_retries", config.MaxRetries,
		"initial_delay", config.InitialDelay,
		"max_delay", config.MaxDelay,
	)

	return NewExponentialBackoffStrategy(
		config.MaxRetries,
		config.InitialDelay,
		config.MaxDelay,
	)
}
