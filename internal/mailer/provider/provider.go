// Package provider abstracts the email backends that carry alert
// notifications (Resend, SES, SMTP). A registry picks the primary backend
// and falls back to the others so a single provider outage does not stop
// alert delivery.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// EmailRequest is one notification ready for the wire: an alert, digest, or
// verification email already rendered by the composer.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Body    string // Plain text body
	HTML    string // HTML body (optional)
}

// Provider is a single email backend capable of carrying notifications.
type Provider interface {
	// Name returns the provider name (e.g., "ses", "resend", "smtp")
	Name() string

	// Send delivers one notification through this backend.
	Send(ctx context.Context, req *EmailRequest) error

	// IsConfigured reports whether the backend has the credentials it needs.
	IsConfigured() bool
}

// GetEnvOrDefault gets an environment variable or returns a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// Registry routes notifications to the configured email backends, preferring
// the primary and falling back in order when it fails.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string   // Preferred backend name
	fallback  []string // Fallback backend names in order
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		fallback:  make([]string, 0),
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
	slog.Info("Registered notification backend",
		"provider", provider.Name(),
		"configured", provider.IsConfigured(),
	)
}

// SetPrimary selects the backend that carries notifications by default.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.primary = name
	slog.Info("Selected primary notification backend", "provider", name)
	return nil
}

// SetFallback sets the backends tried, in order, when the primary fails.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.fallback = names
	slog.Info("Set notification fallback order", "providers", names)
	return nil
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// GetPrimary returns the backend that should carry the next notification:
// the primary if configured, otherwise the first configured fallback,
// otherwise any configured backend.
func (r *Registry) GetPrimary() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.primary != "" {
		if p, ok := r.providers[r.primary]; ok && p.IsConfigured() {
			return p, nil
		}
	}

	for _, name := range r.fallback {
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			slog.Warn("Primary notification backend not configured, routing through fallback",
				"primary", r.primary,
				"fallback", name,
			)
			return p, nil
		}
	}

	for name, p := range r.providers {
		if p.IsConfigured() {
			slog.Warn("Routing notifications through only configured backend", "provider", name)
			return p, nil
		}
	}

	return nil, fmt.Errorf("no configured email provider available")
}

// Send delivers a notification through the best available backend. When the
// primary send fails, the fallbacks are tried in order; the notification
// counts as sent if any backend accepts it.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	provider, err := r.GetPrimary()
	if err != nil {
		return err
	}

	err = provider.Send(ctx, req)
	if err == nil {
		return nil
	}

	r.mu.RLock()
	fallbacks := r.fallback
	r.mu.RUnlock()

	for _, name := range fallbacks {
		p, ok := r.Get(name)
		if !ok || !p.IsConfigured() || p.Name() == provider.Name() {
			continue
		}

		slog.Warn("Notification send failed, trying fallback backend",
			"primary", provider.Name(),
			"fallback", name,
			"error", err,
		)

		if fallbackErr := p.Send(ctx, req); fallbackErr == nil {
			slog.Info("Notification delivered via fallback backend",
				"provider", name,
				"subject", req.Subject,
			)
			return nil
		}
	}
	return err
}

// List returns all registered backend names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
