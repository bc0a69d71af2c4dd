package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"go.uber.org/zap"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	Logger        *zap.Logger
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		Logger:        zap.NewNop(),
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// Retry executes a function with exponential backoff retry logic. A
// non-retryable error (per the application error taxonomy) aborts
// immediately.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				config.Logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", config.MaxAttempts))
			}
			return nil
		}

		lastErr = err

		if !apperrors.IsRetryable(err) {
			config.Logger.Warn("Non-retryable error encountered",
				zap.Error(err),
				zap.Int("attempt", attempt))
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := calculateDelay(config, attempt)
		config.Logger.Info("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	config.Logger.Error("Operation failed after all retry attempts",
		zap.Error(lastErr),
		zap.Int("max_attempts", config.MaxAttempts))
	return lastErr
}

// calculateDelay computes the backoff delay for an attempt, capped at
// MaxDelay, with optional jitter of up to 25%.
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := int64(delay / 4)
		if jitterRange > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(jitterRange))
			if err == nil {
				delay += float64(n.Int64())
			}
		}
	}

	return time.Duration(delay)
}
