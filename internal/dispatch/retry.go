package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs operation with exponential backoff until it succeeds, returns
// a Permanent error, exhausts MaxRetries or ctx is done.
func Retry(ctx context.Context, logger *slog.Logger, name string, operation func() error, cfg RetryConfig) error {
	if logger == nil {
		logger = slog.Default()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()

	retryable := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)

	notify := func(err error, next time.Duration) {
		logger.Warn("operation failed, retrying",
			"operation", name,
			"error", err,
			"next_attempt_in", next.Round(time.Millisecond).String(),
		)
	}
	return backoff.RetryNotify(operation, retryable, notify)
}
