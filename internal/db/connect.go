package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

// ConnectOptions bounds the startup retry loop.
type ConnectOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 6
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	return o
}

// Connect acquires a pgx pool, retrying with exponential backoff until
// MaxAttempts is exhausted. The delay doubles each attempt and is capped
// at MaxDelay.
func Connect(ctx context.Context, dsn string, opts ConnectOptions, logger *logging.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(opts, attempt-1)
			logger.Warn("db: connect failed, retrying",
				"attempt", attempt, "delay", delay.String(), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("db: connect: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			lastErr = err
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			pool.Close()
			lastErr = err
			continue
		}
		return pool, nil
	}
	return nil, fmt.Errorf("db: connect after %d attempts: %w", opts.MaxAttempts, lastErr)
}

func backoffDelay(opts ConnectOptions, exp int) time.Duration {
	delay := opts.BaseDelay * time.Duration(1<<exp)
	if delay > opts.MaxDelay || delay <= 0 {
		delay = opts.MaxDelay
	}
	return delay
}
