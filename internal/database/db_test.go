package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/lib/pq"
)

func TestWrapUnavailable(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnavailable bool
	}{
		{
			name:            "connection returned to pool",
			err:             sql.ErrConnDone,
			wantUnavailable: true,
		},
		{
			name:            "driver lost the connection",
			err:             driver.ErrBadConn,
			wantUnavailable: true,
		},
		{
			name:            "wrapped bad connection",
			err:             fmt.Errorf("query: %w", driver.ErrBadConn),
			wantUnavailable: true,
		},
		{
			name:            "context deadline exceeded",
			err:             context.DeadlineExceeded,
			wantUnavailable: true,
		},
		{
			name: "dial refused by a down server",
			err: &net.OpError{
				Op:  "dial",
				Net: "tcp",
				Err: syscall.ECONNREFUSED,
			},
			wantUnavailable: true,
		},
		{
			name:            "connection reset mid-query",
			err:             &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET},
			wantUnavailable: true,
		},
		{
			name:            "server connection failure class 08",
			err:             &pq.Error{Code: "08006"},
			wantUnavailable: true,
		},
		{
			name:            "server admin shutdown",
			err:             &pq.Error{Code: "57P01"},
			wantUnavailable: true,
		},
		{
			name:            "no rows is not unavailability",
			err:             sql.ErrNoRows,
			wantUnavailable: false,
		},
		{
			name:            "unique violation is not unavailability",
			err:             &pq.Error{Code: "23505"},
			wantUnavailable: false,
		},
		{
			name:            "plain error is not unavailability",
			err:             errors.New("syntax error"),
			wantUnavailable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := wrapUnavailable(tt.err, "query failed")
			if got := errors.Is(wrapped, ErrUnavailable); got != tt.wantUnavailable {
				t.Errorf("errors.Is(wrapUnavailable(%v), ErrUnavailable) = %v, want %v",
					tt.err, got, tt.wantUnavailable)
			}
			if !tt.wantUnavailable && !errors.Is(wrapped, tt.err) {
				t.Errorf("wrapUnavailable(%v) lost the original error", tt.err)
			}
		})
	}
}
