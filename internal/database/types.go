package database

import (
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
)

// User represents a row in the users table. The verification token is
// cleared on consumption; it is never present for a verified user.
type User struct {
	UserID            string    `json:"user_id"`
	Email             string    `json:"email"`
	VerificationToken *string   `json:"-"`
	Verified          bool      `json:"verified"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Subscription represents a row in the subscriptions table. An empty
// Companies filter means the subscription matches every company.
type Subscription struct {
	SubscriptionID string          `json:"subscription_id"`
	UserID         string          `json:"user_id"`
	Category       alerts.Category `json:"category"`
	Companies      []string        `json:"companies"`
	Cadence        alerts.Cadence  `json:"cadence"`
	Threshold      float64         `json:"threshold"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Delivery represents a row in the delivery_log table. Rows are append-only.
type Delivery struct {
	DeliveryID string          `json:"delivery_id"`
	UserID     string          `json:"user_id"`
	Category   alerts.Category `json:"category"`
	Company    string          `json:"company,omitempty"`
	Subject    string          `json:"subject"`
	Outcome    alerts.Outcome  `json:"outcome"`
	SentAt     time.Time       `json:"sent_at"`
}
