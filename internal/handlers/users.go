package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
)

// SignupRequest represents a request to register an email address.
type SignupRequest struct {
	Email string `json:"email"`
}

// SignupResponse is intentionally identical for new and already registered
// addresses, so the endpoint does not reveal whether an account exists.
type SignupResponse struct {
	Message string `json:"message"`
}

const signupMessage = "Check your email for a verification link"

// Signup registers an email address and sends a verification link.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !isValidEmail(req.Email) {
		http.Error(w, "A valid email address is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, token, err := h.db.CreateUser(ctx, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			// Same response as success: do not leak account existence.
			slog.Debug("Signup for existing email", "email", database.NormalizeEmail(req.Email))
			writeJSON(w, http.StatusAccepted, SignupResponse{Message: signupMessage})
			return
		}
		writeStoreError(w, err, "user")
		return
	}

	h.metrics.RecordSignup()
	slog.Info("User signed up", "user_id", user.UserID)

	// The token travels only via the verification email, never in the
	// HTTP response.
	msg := composer.Verification(h.baseURL, token)
	if err := h.mailer.Send(ctx, user.Email, msg); err != nil {
		slog.Error("Failed to send verification email", "user_id", user.UserID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, SignupResponse{Message: signupMessage})
}

// Verify consumes a verification token from the emailed link.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	token, ok := requireQueryParam(w, r, "token")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.db.VerifyToken(ctx, token); err != nil {
		if errors.Is(err, database.ErrInvalidToken) {
			// Generic message: the token does not reveal whether an
			// account exists.
			http.Error(w, "Invalid or expired link", http.StatusBadRequest)
			return
		}
		writeStoreError(w, err, "user")
		return
	}

	h.metrics.RecordVerification()
	slog.Info("Email verified")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

// DeactivateUserRequest represents a request to deactivate an account.
type DeactivateUserRequest struct {
	Email string `json:"email"`
}

// DeactivateUser soft-deactivates a user and all of their subscriptions.
func (h *Handlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req DeactivateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.db.GetUserByEmail(ctx, req.Email)
	if writeStoreError(w, err, "user") {
		return
	}

	if err := h.db.DeactivateUser(ctx, user.UserID); err != nil {
		writeStoreError(w, err, "user")
		return
	}

	slog.Info("User deactivated", "user_id", user.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deactivated"})
}
