package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "timeout error",
			err:      errors.New("connection timeout"),
			expected: true,
		},
		{
			name:     "rate limit error",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "503 service unavailable",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			expected: true,
		},
		{
			name:     "SES not verified (permanent)",
			err:      errors.New("Email address is not verified"),
			expected: false,
		},
		{
			name:     "invalid recipient (permanent)",
			err:      errors.New("invalid email address format"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some random error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsRetryable(tt.err)
			if got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWithRetry_Success(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffFactor: 2.0}

	callCount := 0
	err := WithRetry(context.Background(), cfg, "test", func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("WithRetry() error = %v, want nil", err)
	}
	if callCount != 1 {
		t.Errorf("WithRetry() called function %d times, want 1", callCount)
	}
}

func TestWithRetry_RetryableError(t *testing.T) {
	cfg := Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffFactor: 2.0}

	callCount := 0
	err := WithRetry(context.Background(), cfg, "test", func() error {
		callCount++
		if callCount < 3 {
			return errors.New("connection timeout")
		}
		return nil
	})

	if err != nil {
		t.Errorf("WithRetry() error = %v, want nil", err)
	}
	if callCount != 3 {
		t.Errorf("WithRetry() called function %d times, want 3", callCount)
	}
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffFactor: 2.0}

	callCount := 0
	wantErr := errors.New("invalid email address format")
	err := WithRetry(context.Background(), cfg, "test", func() error {
		callCount++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("WithRetry() error = %v, want %v", err, wantErr)
	}
	if callCount != 1 {
		t.Errorf("WithRetry() called function %d times, want 1 (no retries)", callCount)
	}
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffFactor: 2.0}

	callCount := 0
	err := WithRetry(context.Background(), cfg, "test", func() error {
		callCount++
		return errors.New("connection timeout")
	})

	if err == nil {
		t.Error("WithRetry() error = nil, want timeout error")
	}
	if callCount != 3 {
		t.Errorf("WithRetry() called function %d times, want 3", callCount)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, cfg, "test", func() error {
		return errors.New("connection timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithRetry() error = %v, want context.Canceled", err)
	}
}
