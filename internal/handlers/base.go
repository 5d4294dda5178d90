// Package handlers provides HTTP handlers for the alert service API.
package handlers

import (
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/engine"
	"github.com/kritinkaul/automated-esg-tracker/internal/mailer"
	"github.com/kritinkaul/automated-esg-tracker/internal/metrics"
)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	db      Repository
	engine  AlertProcessor
	mailer  Sender
	metrics metrics.Recorder

	// baseURL is the externally reachable address used to build
	// verification links.
	baseURL string
}

// NewHandlers creates a new handlers instance.
// If m is nil, a no-op metrics recorder is used.
func NewHandlers(db *database.DB, eng *engine.Engine, m *mailer.Mailer, rec metrics.Recorder, baseURL string) *Handlers {
	if rec == nil {
		rec = metrics.NewNoOpRecorder()
	}
	return &Handlers{
		db:      db,
		engine:  eng,
		mailer:  m,
		metrics: rec,
		baseURL: baseURL,
	}
}

// NewHandlersWithDeps creates handlers with explicit interface dependencies.
// This constructor is primarily for testing.
func NewHandlersWithDeps(db Repository, eng AlertProcessor, m Sender, rec metrics.Recorder, baseURL string) *Handlers {
	if rec == nil {
		rec = metrics.NewNoOpRecorder()
	}
	return &Handlers{
		db:      db,
		engine:  eng,
		mailer:  m,
		metrics: rec,
		baseURL: baseURL,
	}
}
