package handlers

import (
	"context"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/engine"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

// mockRepository implements Repository with function fields so each test
// overrides only what it needs.
type mockRepository struct {
	createUserFn             func(ctx context.Context, email string) (*database.User, string, error)
	verifyTokenFn            func(ctx context.Context, token string) error
	getUserByEmailFn         func(ctx context.Context, email string) (*database.User, error)
	deactivateUserFn         func(ctx context.Context, userID string) error
	createSubscriptionFn     func(ctx context.Context, userID string, category alerts.Category, companies []string, cadence alerts.Cadence, threshold float64) (*database.Subscription, error)
	listSubscriptionsFn      func(ctx context.Context, userID string) ([]*database.Subscription, error)
	deactivateSubscriptionFn func(ctx context.Context, subscriptionID, userID string) error
}

func (m *mockRepository) CreateUser(ctx context.Context, email string) (*database.User, string, error) {
	return m.createUserFn(ctx, email)
}

func (m *mockRepository) VerifyToken(ctx context.Context, token string) error {
	return m.verifyTokenFn(ctx, token)
}

func (m *mockRepository) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	return m.getUserByEmailFn(ctx, email)
}

func (m *mockRepository) DeactivateUser(ctx context.Context, userID string) error {
	return m.deactivateUserFn(ctx, userID)
}

func (m *mockRepository) CreateSubscription(ctx context.Context, userID string, category alerts.Category, companies []string, cadence alerts.Cadence, threshold float64) (*database.Subscription, error) {
	return m.createSubscriptionFn(ctx, userID, category, companies, cadence, threshold)
}

func (m *mockRepository) ListSubscriptionsForUser(ctx context.Context, userID string) ([]*database.Subscription, error) {
	return m.listSubscriptionsFn(ctx, userID)
}

func (m *mockRepository) DeactivateSubscription(ctx context.Context, subscriptionID, userID string) error {
	return m.deactivateSubscriptionFn(ctx, subscriptionID, userID)
}

// mockProcessor implements AlertProcessor.
type mockProcessor struct {
	processFn func(ctx context.Context, ev *events.ChangeEvent) (engine.Summary, error)
	digestsFn func(ctx context.Context, cadence alerts.Cadence, payload events.DigestPayload) (engine.Summary, error)
}

func (m *mockProcessor) ProcessChangeEvent(ctx context.Context, ev *events.ChangeEvent) (engine.Summary, error) {
	return m.processFn(ctx, ev)
}

func (m *mockProcessor) SendDigests(ctx context.Context, cadence alerts.Cadence, payload events.DigestPayload) (engine.Summary, error) {
	return m.digestsFn(ctx, cadence, payload)
}

// mockSender implements Sender and records sent messages.
type mockSender struct {
	sendFn func(ctx context.Context, to string, msg composer.Message) error
	sent   []composer.Message
}

func (m *mockSender) Send(ctx context.Context, to string, msg composer.Message) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, to, msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}
