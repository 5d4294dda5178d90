package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kritinkaul/automated-esg-tracker/internal/database"
)

// writeStoreError maps a storage error onto an HTTP response. Returns true
// if the error was non-nil and handled.
func writeStoreError(w http.ResponseWriter, err error, resource string) bool {
	if err == nil {
		return false
	}

	slog.Error("Storage error", "error", err, "resource", resource)

	switch {
	case errors.Is(err, database.ErrNotFound):
		http.Error(w, resource+" not found", http.StatusNotFound)
	case errors.Is(err, database.ErrNotOwner):
		http.Error(w, "Not authorized for this "+resource, http.StatusForbidden)
	case errors.Is(err, database.ErrUserNotVerified):
		http.Error(w, "Email address is not verified", http.StatusForbidden)
	case errors.Is(err, database.ErrInvalidThreshold):
		http.Error(w, "Threshold must be non-negative", http.StatusBadRequest)
	case errors.Is(err, database.ErrUnavailable):
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}
