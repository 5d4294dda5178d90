package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

// ProcessEvent accepts a change event from the data-collection layer and
// runs the alert fan-out synchronously, returning the outcome summary.
func (h *Handlers) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var ev events.ChangeEvent
	if !decodeJSON(w, r, &ev) {
		return
	}

	if ev.Company == "" {
		http.Error(w, "company is required", http.StatusBadRequest)
		return
	}
	if _, err := ev.ParsedCategory(); err != nil {
		http.Error(w, "Unknown alert category", http.StatusBadRequest)
		return
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now().UTC()
	}

	summary, err := h.engine.ProcessChangeEvent(r.Context(), &ev)
	if err != nil {
		slog.Error("Change event processing failed",
			"category", ev.Category,
			"company", ev.Company,
			"error", err,
		)
		writeStoreError(w, err, "event")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// SendDigests sends a periodic digest to every matching subscription. The
// request body carries the cadence and the aggregate digest content
// supplied by the collection layer.
func (h *Handlers) SendDigests(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req events.DigestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cadence, err := alerts.ParseCadence(req.Cadence)
	if err != nil {
		http.Error(w, "Unknown cadence", http.StatusBadRequest)
		return
	}

	summary, err := h.engine.SendDigests(r.Context(), cadence, req.Payload)
	if err != nil {
		slog.Error("Digest send failed", "cadence", cadence, "error", err)
		writeStoreError(w, err, "digest")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
