package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
)

// RecordDelivery appends one delivery record. The log is append-only and a
// logging failure must never fail the caller's notification attempt, so this
// returns no error; failures are logged and surfaced via the returned bool.
func (db *DB) RecordDelivery(ctx context.Context, userID string, category alerts.Category, company, subject string, outcome alerts.Outcome) bool {
	query := `
		INSERT INTO delivery_log (user_id, category, company, subject, outcome, sent_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NOW())
	`
	if _, err := db.conn.ExecContext(ctx, query, userID, category.String(), company, subject, outcome.String()); err != nil {
		slog.Error("Failed to record delivery",
			"error", err,
			"user_id", userID,
			"category", category,
			"company", company,
			"outcome", outcome,
		)
		return false
	}
	return true
}

// RecentDeliveries returns delivery records for a (user, category, company)
// tuple within the given window, newest first. The alert engine uses it to
// suppress duplicate sends.
func (db *DB) RecentDeliveries(ctx context.Context, userID string, category alerts.Category, company string, within time.Duration) ([]*Delivery, error) {
	query := `
		SELECT delivery_id, user_id, category, COALESCE(company, ''), subject, outcome, sent_at
		FROM delivery_log
		WHERE user_id = $1
		  AND category = $2
		  AND COALESCE(company, '') = $3
		  AND sent_at > $4
		ORDER BY sent_at DESC
	`
	cutoff := time.Now().Add(-within)
	rows, err := db.conn.QueryContext(ctx, query, userID, category.String(), company, cutoff)
	if err != nil {
		return nil, wrapUnavailable(err, "failed to query recent deliveries")
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(
			&d.DeliveryID,
			&d.UserID,
			&d.Category,
			&d.Company,
			&d.Subject,
			&d.Outcome,
			&d.SentAt,
		); err != nil {
			return nil, wrapUnavailable(err, "failed to scan delivery record")
		}
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err, "error iterating delivery records")
	}
	return deliveries, nil
}
