package handlers

import (
	"context"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/engine"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

// Repository defines the interface for database operations.
// This allows handlers to be tested without a real database.
type Repository interface {
	// Identity operations
	CreateUser(ctx context.Context, email string) (*database.User, string, error)
	VerifyToken(ctx context.Context, token string) error
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	DeactivateUser(ctx context.Context, userID string) error

	// Subscription operations
	CreateSubscription(ctx context.Context, userID string, category alerts.Category, companies []string, cadence alerts.Cadence, threshold float64) (*database.Subscription, error)
	ListSubscriptionsForUser(ctx context.Context, userID string) ([]*database.Subscription, error)
	DeactivateSubscription(ctx context.Context, subscriptionID, userID string) error
}

// AlertProcessor defines the interface for triggering alert processing.
type AlertProcessor interface {
	ProcessChangeEvent(ctx context.Context, ev *events.ChangeEvent) (engine.Summary, error)
	SendDigests(ctx context.Context, cadence alerts.Cadence, payload events.DigestPayload) (engine.Summary, error)
}

// Sender defines the interface for sending composed messages.
type Sender interface {
	Send(ctx context.Context, to string, msg composer.Message) error
}
