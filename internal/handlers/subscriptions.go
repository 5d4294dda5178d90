package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
)

// AddSubscriptionRequest represents a request to create a subscription.
type AddSubscriptionRequest struct {
	Email     string   `json:"email"`
	Category  string   `json:"category"`
	Companies []string `json:"companies"`
	Cadence   string   `json:"cadence"`
	Threshold float64  `json:"threshold"`
}

// AddSubscription creates an alert subscription for a verified user.
func (h *Handlers) AddSubscription(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req AddSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := alerts.ParseCategory(req.Category)
	if err != nil {
		http.Error(w, "Unknown alert category", http.StatusBadRequest)
		return
	}

	cadence := alerts.CadenceDaily
	if req.Cadence != "" {
		if cadence, err = alerts.ParseCadence(req.Cadence); err != nil {
			http.Error(w, "Unknown cadence", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	user, err := h.db.GetUserByEmail(ctx, req.Email)
	if writeStoreError(w, err, "user") {
		return
	}

	sub, err := h.db.CreateSubscription(ctx, user.UserID, category, req.Companies, cadence, req.Threshold)
	if err != nil {
		writeStoreError(w, err, "subscription")
		return
	}

	slog.Info("Subscription created",
		"subscription_id", sub.SubscriptionID,
		"user_id", user.UserID,
		"category", category,
		"companies", sub.Companies,
		"threshold", sub.Threshold,
	)
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions returns a user's subscriptions ordered by creation time.
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	email, ok := requireQueryParam(w, r, "email")
	if !ok {
		return
	}

	ctx := r.Context()
	user, err := h.db.GetUserByEmail(ctx, email)
	if writeStoreError(w, err, "user") {
		return
	}

	subs, err := h.db.ListSubscriptionsForUser(ctx, user.UserID)
	if writeStoreError(w, err, "subscription") {
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

// DeactivateSubscriptionRequest represents a request to deactivate a subscription.
type DeactivateSubscriptionRequest struct {
	Email          string `json:"email"`
	SubscriptionID string `json:"subscription_id"`
}

// DeactivateSubscription deactivates a subscription owned by the caller.
func (h *Handlers) DeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req DeactivateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.SubscriptionID == "" {
		http.Error(w, "subscription_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := h.db.GetUserByEmail(ctx, req.Email)
	if writeStoreError(w, err, "user") {
		return
	}

	if err := h.db.DeactivateSubscription(ctx, req.SubscriptionID, user.UserID); err != nil {
		writeStoreError(w, err, "subscription")
		return
	}

	slog.Info("Subscription deactivated",
		"subscription_id", req.SubscriptionID,
		"user_id", user.UserID,
	)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription deactivated"})
}
