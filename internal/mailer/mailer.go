// Package mailer sends composed messages to email addresses. It coordinates
// multiple email providers with fallback and retries transient failures.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/mailer/provider"
	"github.com/kritinkaul/automated-esg-tracker/internal/mailer/retry"
)

// sendTimeout bounds a single transport attempt so a slow mail relay is
// reported as a failure instead of stalling the batch.
const sendTimeout = 15 * time.Second

// Mailer sends composed messages via the best available email provider.
type Mailer struct {
	registry *provider.Registry
	from     string
	retryCfg retry.Config
}

// NewMailer creates a mailer with all providers registered. The primary
// provider is selected via MAIL_PROVIDER (default "resend"), with the other
// providers as fallbacks.
func NewMailer(from string) *Mailer {
	registry := provider.NewRegistry()
	registry.Register(provider.NewResendProvider())
	registry.Register(provider.NewSESProvider())
	registry.Register(provider.NewSMTPProvider())

	primary := provider.GetEnvOrDefault("MAIL_PROVIDER", "resend")
	if err := registry.SetPrimary(primary); err == nil {
		switch primary {
		case "resend":
			registry.SetFallback("ses", "smtp")
		case "ses":
			registry.SetFallback("resend", "smtp")
		default:
			registry.SetFallback("resend", "ses")
		}
	}

	return &Mailer{
		registry: registry,
		from:     from,
		retryCfg: retry.DefaultConfig(),
	}
}

// NewMailerWithRegistry creates a mailer with a custom registry.
// This is useful for testing or custom provider configurations.
func NewMailerWithRegistry(registry *provider.Registry, from string) *Mailer {
	return &Mailer{
		registry: registry,
		from:     from,
		retryCfg: retry.DefaultConfig(),
	}
}

// Send delivers a composed message to one recipient. Transient transport
// failures are retried with backoff; the attempt as a whole is bounded by
// sendTimeout.
func (m *Mailer) Send(ctx context.Context, to string, msg composer.Message) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("email recipient is required")
	}
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address format: %q", to)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req := &provider.EmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: msg.Subject,
		Body:    msg.Text,
		HTML:    msg.HTML,
	}

	operation := fmt.Sprintf("send_email_%s", msg.Subject)
	return retry.WithRetry(ctx, m.retryCfg, operation, func() error {
		return m.registry.Send(ctx, req)
	})
}
