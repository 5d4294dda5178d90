// Package retry implements bounded exponential backoff for alert
// notification delivery. Transient transport failures (timeouts, throttling,
// provider outages) are retried; permanent rejections fail the send
// immediately so the delivery log records an honest outcome.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// permanentMarkers identifies provider rejections that no amount of retrying
// will fix. Matched case-insensitively against the error text because the
// email providers return plain string errors.
var permanentMarkers = []string{
	"not verified",          // SES sandbox recipient
	"validation error",
	"invalid",
	"malformed",
	"recipient is required",
	"no recipients",
}

// transientMarkers identifies failures worth retrying before giving up on a
// notification.
var transientMarkers = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary",
	"rate limit",
	"throttl",
	"503",
	"502",
	"504",
	"too many requests",
	"try again",
}

// Config defines retry behavior for a notification send.
type Config struct {
	MaxRetries     int           // Retry attempts after the first send (0 = single attempt)
	InitialBackoff time.Duration // Backoff before the first retry
	MaxBackoff     time.Duration // Backoff ceiling
	BackoffFactor  float64       // Multiplier applied per attempt
}

// DefaultConfig returns the retry policy used for alert emails. Kept short:
// a notification that cannot be delivered within a few seconds is handed
// back to the engine, which records the failure in the delivery log.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     3 * time.Second,
		BackoffFactor:  2.0,
	}
}

// IsRetryable reports whether a send error is transient. Permanent markers
// win over transient ones, and unknown errors are treated as permanent so a
// misbehaving provider cannot trap a notification in a retry loop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	for _, s := range permanentMarkers {
		if strings.Contains(errStr, s) {
			return false
		}
	}
	for _, s := range transientMarkers {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// WithRetry runs fn until it succeeds, returns a permanent error, or the
// retry budget is spent. The operation name tags the log lines so a stuck
// notification can be traced back to its subject.
func WithRetry(ctx context.Context, cfg Config, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				slog.Info("Notification delivered after retry",
					"operation", operation,
					"attempt", attempt+1,
				)
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			slog.Debug("Provider rejected notification permanently",
				"operation", operation,
				"error", err,
			)
			return err
		}

		if attempt >= cfg.MaxRetries {
			slog.Warn("Giving up on notification after retries",
				"operation", operation,
				"attempts", attempt+1,
				"error", err,
			)
			return err
		}

		backoff := backoffFor(cfg, attempt)

		slog.Warn("Transient send failure, backing off",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// backoffFor grows the delay exponentially, capped at MaxBackoff, with
// ±25% jitter so retries from concurrent dispatch workers spread out.
func backoffFor(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}
