package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
)

// Match pairs a matching subscription with the owner's email address, so the
// alert engine can dispatch without a second lookup per subscription.
type Match struct {
	Subscription
	Email string `json:"email"`
}

// normalizeCompanies upper-cases, trims, and dedupes a company filter,
// rejecting malformed tickers. Returns a sorted slice for stable storage.
func normalizeCompanies(companies []string) ([]string, error) {
	seen := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		ticker := strings.ToUpper(strings.TrimSpace(c))
		if ticker == "" {
			continue
		}
		if !isValidTicker(ticker) {
			return nil, fmt.Errorf("invalid company ticker: %q", c)
		}
		seen[ticker] = struct{}{}
	}
	normalized := make([]string, 0, len(seen))
	for ticker := range seen {
		normalized = append(normalized, ticker)
	}
	sort.Strings(normalized)
	return normalized, nil
}

// isValidTicker reports whether s looks like an exchange ticker:
// 1-8 characters from [A-Z0-9.-].
func isValidTicker(s string) bool {
	if len(s) == 0 || len(s) > 8 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}

// CreateSubscription adds an alert subscription for a verified user.
// Returns ErrUserNotVerified when the owner is missing, deactivated, or has
// not verified their email; ErrInvalidThreshold for negative thresholds.
func (db *DB) CreateSubscription(ctx context.Context, userID string, category alerts.Category, companies []string, cadence alerts.Cadence, threshold float64) (*Subscription, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("threshold %v: %w", threshold, ErrInvalidThreshold)
	}

	normalized, err := normalizeCompanies(companies)
	if err != nil {
		return nil, err
	}

	var verified, active bool
	err = db.conn.QueryRowContext(ctx,
		`SELECT verified, active FROM users WHERE user_id = $1`, userID,
	).Scan(&verified, &active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotVerified)
	}
	if err != nil {
		return nil, wrapUnavailable(err, "failed to check user verification")
	}
	if !verified || !active {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotVerified)
	}

	query := `
		INSERT INTO subscriptions (user_id, category, companies, cadence, threshold, active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		RETURNING subscription_id, user_id, category, companies, cadence, threshold, active, created_at
	`
	var sub Subscription
	err = db.conn.QueryRowContext(ctx, query, userID, category.String(), pq.Array(normalized), cadence.String(), threshold).Scan(
		&sub.SubscriptionID,
		&sub.UserID,
		&sub.Category,
		pq.Array(&sub.Companies),
		&sub.Cadence,
		&sub.Threshold,
		&sub.Active,
		&sub.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotVerified)
		}
		return nil, wrapUnavailable(err, "failed to create subscription")
	}

	slog.Info("Created subscription",
		"subscription_id", sub.SubscriptionID,
		"user_id", sub.UserID,
		"category", sub.Category,
		"companies", sub.Companies,
	)
	return &sub, nil
}

// ListSubscriptionsForUser returns a user's subscriptions ordered by creation
// time for stable display.
func (db *DB) ListSubscriptionsForUser(ctx context.Context, userID string) ([]*Subscription, error) {
	query := `
		SELECT subscription_id, user_id, category, companies, cadence, threshold, active, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapUnavailable(err, "failed to list subscriptions")
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(
			&sub.SubscriptionID,
			&sub.UserID,
			&sub.Category,
			pq.Array(&sub.Companies),
			&sub.Cadence,
			&sub.Threshold,
			&sub.Active,
			&sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// DeactivateSubscription deactivates a subscription after verifying the
// caller owns it. Subscriptions are never deleted.
func (db *DB) DeactivateSubscription(ctx context.Context, subscriptionID, userID string) error {
	query := `
		UPDATE subscriptions
		SET active = FALSE
		WHERE subscription_id = $1 AND user_id = $2
	`
	result, err := db.conn.ExecContext(ctx, query, subscriptionID, userID)
	if err != nil {
		return wrapUnavailable(err, "failed to deactivate subscription")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing subscription from one owned by someone else.
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscription_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, subscriptionID).Scan(&exists); err == nil && exists {
			return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotOwner)
		}
		return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotFound)
	}

	slog.Info("Deactivated subscription", "subscription_id", subscriptionID, "user_id", userID)
	return nil
}

// FindMatching returns all active subscriptions of the given category, owned
// by verified active users, whose company filter is empty or contains the
// company. Membership is an exact array-element test: "META" in the filter
// never matches the company "MET".
func (db *DB) FindMatching(ctx context.Context, category alerts.Category, company string) ([]*Match, error) {
	query := `
		SELECT s.subscription_id, s.user_id, s.category, s.companies, s.cadence, s.threshold, s.active, s.created_at, u.email
		FROM subscriptions s
		JOIN users u ON u.user_id = s.user_id
		WHERE s.category = $1
		  AND s.active = TRUE
		  AND u.verified = TRUE
		  AND u.active = TRUE
		  AND (cardinality(s.companies) = 0 OR $2 = ANY(s.companies))
		ORDER BY s.created_at ASC
	`
	return db.queryMatches(ctx, query, category.String(), strings.ToUpper(strings.TrimSpace(company)))
}

// ListDigestSubscriptions returns all active periodic-digest subscriptions
// with a matching cadence, owned by verified active users.
func (db *DB) ListDigestSubscriptions(ctx context.Context, cadence alerts.Cadence) ([]*Match, error) {
	query := `
		SELECT s.subscription_id, s.user_id, s.category, s.companies, s.cadence, s.threshold, s.active, s.created_at, u.email
		FROM subscriptions s
		JOIN users u ON u.user_id = s.user_id
		WHERE s.category = $1
		  AND s.cadence = $2
		  AND s.active = TRUE
		  AND u.verified = TRUE
		  AND u.active = TRUE
		ORDER BY s.created_at ASC
	`
	return db.queryMatches(ctx, query, alerts.CategoryDigest.String(), cadence.String())
}

func (db *DB) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*Match, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapUnavailable(err, "failed to query matching subscriptions")
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(
			&m.SubscriptionID,
			&m.UserID,
			&m.Category,
			pq.Array(&m.Companies),
			&m.Cadence,
			&m.Threshold,
			&m.Active,
			&m.CreatedAt,
			&m.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan matching subscription: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
