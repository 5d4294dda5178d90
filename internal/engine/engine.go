// Package engine implements the alert fan-out: matching change events
// against subscriptions, deduplicating against the delivery log, and
// dispatching notifications through the mail transport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
	"github.com/kritinkaul/automated-esg-tracker/internal/metrics"
)

const (
	// DefaultDedupWindow is how long an equivalent notification is
	// suppressed after a delivery for the same (user, category, company).
	DefaultDedupWindow = time.Hour
	// defaultWorkers is the fan-out worker count for a single batch.
	defaultWorkers = 10
)

// SubscriptionSource provides the subscriptions eligible for a notification.
type SubscriptionSource interface {
	FindMatching(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error)
	ListDigestSubscriptions(ctx context.Context, cadence alerts.Cadence) ([]*database.Match, error)
}

// DeliveryLog records notification outcomes and answers dedup queries.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, userID string, category alerts.Category, company, subject string, outcome alerts.Outcome) bool
	RecentDeliveries(ctx context.Context, userID string, category alerts.Category, company string, within time.Duration) ([]*database.Delivery, error)
}

// Transport delivers a composed message to a recipient address.
type Transport interface {
	Send(ctx context.Context, to string, msg composer.Message) error
}

// Summary reports the outcome counts of one engine invocation.
// Attempted counts subscriptions that passed the threshold check,
// including those subsequently suppressed by dedup.
type Summary struct {
	Attempted  int `json:"attempted"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// Engine fans a change event out across matching subscriptions.
type Engine struct {
	subs        SubscriptionSource
	log         DeliveryLog
	transport   Transport
	metrics     metrics.Recorder
	dedupWindow time.Duration
	workers     int

	// locks serializes dedup-check-then-record per (user, category, company)
	// tuple so concurrent workers cannot both pass the suppression check.
	locks sync.Map
}

// NewEngine creates an engine with the default dedup window and worker count.
func NewEngine(subs SubscriptionSource, log DeliveryLog, transport Transport, m metrics.Recorder) *Engine {
	if m == nil {
		m = metrics.NewNoOpRecorder()
	}
	return &Engine{
		subs:        subs,
		log:         log,
		transport:   transport,
		metrics:     m,
		dedupWindow: DefaultDedupWindow,
		workers:     defaultWorkers,
	}
}

// SetDedupWindow overrides the suppression window.
func (e *Engine) SetDedupWindow(window time.Duration) {
	if window > 0 {
		e.dedupWindow = window
	}
}

// SetWorkers overrides the fan-out worker count.
func (e *Engine) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
	}
}

// ProcessChangeEvent notifies every matching subscription of one change
// event. Subscriptions are processed independently: a transport failure
// for one user does not stop the others. A storage error aborts the
// remaining work, since neither the dedup check nor the match set can be
// trusted without the store.
func (e *Engine) ProcessChangeEvent(ctx context.Context, ev *events.ChangeEvent) (Summary, error) {
	e.metrics.RecordReceived()
	start := time.Now()

	category, err := ev.ParsedCategory()
	if err != nil {
		e.metrics.RecordError()
		return Summary{}, err
	}

	pct, ok := ev.PercentChange()
	if !ok {
		slog.Debug("Skipping event with undefined percent change",
			"category", category,
			"company", ev.Company,
			"previous_value", ev.PreviousValue,
		)
		return Summary{}, nil
	}

	matches, err := e.subs.FindMatching(ctx, category, ev.Company)
	if err != nil {
		e.metrics.RecordError()
		return Summary{}, fmt.Errorf("failed to find matching subscriptions: %w", err)
	}

	candidates := make([]*database.Match, 0, len(matches))
	for _, m := range matches {
		// Threshold 0 means notify on every change.
		if m.Threshold > 0 && math.Abs(pct) < m.Threshold {
			continue
		}
		candidates = append(candidates, m)
	}

	slog.Debug("Fanning out change event",
		"category", category,
		"company", ev.Company,
		"percent_change", pct,
		"matched", len(matches),
		"candidates", len(candidates),
	)

	summary, err := e.dispatch(ctx, candidates, func(taskCtx context.Context, m *database.Match) (alerts.Outcome, error) {
		msg := composer.ForEvent(category, ev.Company, ev.PreviousValue, ev.NewValue, pct)
		return e.notifyOne(taskCtx, m, category, ev.Company, msg)
	})

	e.metrics.RecordProcessed(time.Since(start))
	return summary, err
}

// SendDigests sends a periodic digest to every active digest subscription
// of the given cadence. Digests skip the threshold check but follow the
// same dedup and log-then-attempt discipline as event notifications.
func (e *Engine) SendDigests(ctx context.Context, cadence alerts.Cadence, payload events.DigestPayload) (Summary, error) {
	start := time.Now()

	matches, err := e.subs.ListDigestSubscriptions(ctx, cadence)
	if err != nil {
		e.metrics.RecordError()
		return Summary{}, fmt.Errorf("failed to list digest subscriptions: %w", err)
	}

	slog.Debug("Sending digests", "cadence", cadence, "subscriptions", len(matches))

	summary, err := e.dispatch(ctx, matches, func(taskCtx context.Context, m *database.Match) (alerts.Outcome, error) {
		msg := composer.Digest(m.Email, cadence, payload)
		return e.notifyOne(taskCtx, m, alerts.CategoryDigest, "", msg)
	})

	e.metrics.RecordProcessed(time.Since(start))
	return summary, err
}

// notify is the per-subscription work function used by dispatch.
type notify func(ctx context.Context, m *database.Match) (alerts.Outcome, error)

// dispatch runs fn for each match on a worker pool and aggregates the
// outcomes. The first storage error cancels remaining work; outcomes
// already recorded are kept (partial progress is idempotent-safe because
// of the dedup window).
func (e *Engine) dispatch(ctx context.Context, matches []*database.Match, fn notify) (Summary, error) {
	if len(matches) == 0 {
		return Summary{}, nil
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := e.workers
	if workers > len(matches) {
		workers = len(matches)
	}

	jobs := make(chan *database.Match)

	var (
		mu       sync.Mutex
		summary  Summary
		batchErr error
	)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				outcome, err := fn(batchCtx, m)
				mu.Lock()
				switch {
				case err != nil && errors.Is(err, database.ErrUnavailable):
					if batchErr == nil {
						batchErr = err
					}
					mu.Unlock()
					cancel()
					continue
				case err != nil:
					summary.Attempted++
					summary.Failed++
				default:
					summary.Attempted++
					switch outcome {
					case alerts.OutcomeSent:
						summary.Sent++
					case alerts.OutcomeSuppressed:
						summary.Suppressed++
					case alerts.OutcomeTransportFailed:
						summary.Failed++
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, m := range matches {
		select {
		case <-batchCtx.Done():
		case jobs <- m:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	if batchErr != nil {
		return summary, batchErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// notifyOne runs the suppression check and, when clear, attempts delivery
// and records the outcome. The returned error is non-nil only for storage
// failures; a transport failure is a recorded outcome, not an error.
func (e *Engine) notifyOne(ctx context.Context, m *database.Match, category alerts.Category, company string, msg composer.Message) (alerts.Outcome, error) {
	lock := e.lockFor(m.UserID, category, company)
	lock.Lock()
	defer lock.Unlock()

	recent, err := e.log.RecentDeliveries(ctx, m.UserID, category, company, e.dedupWindow)
	if err != nil {
		e.metrics.RecordError()
		return "", fmt.Errorf("dedup check failed for user %s: %w", m.UserID, err)
	}

	if len(recent) > 0 {
		e.log.RecordDelivery(ctx, m.UserID, category, company, msg.Subject, alerts.OutcomeSuppressed)
		e.metrics.RecordSuppressed()
		slog.Debug("Suppressed duplicate notification",
			"user_id", m.UserID,
			"category", category,
			"company", company,
			"window", e.dedupWindow,
		)
		return alerts.OutcomeSuppressed, nil
	}

	outcome := alerts.OutcomeSent
	if err := e.transport.Send(ctx, m.Email, msg); err != nil {
		outcome = alerts.OutcomeTransportFailed
		e.metrics.RecordSendFailed()
		slog.Error("Failed to send notification",
			"user_id", m.UserID,
			"category", category,
			"company", company,
			"error", err,
		)
	} else {
		e.metrics.RecordSent()
		slog.Info("Sent notification",
			"user_id", m.UserID,
			"category", category,
			"company", company,
			"subject", msg.Subject,
		)
	}

	e.log.RecordDelivery(ctx, m.UserID, category, company, msg.Subject, outcome)
	return outcome, nil
}

// lockFor returns the mutex serializing deliveries for one
// (user, category, company) tuple.
func (e *Engine) lockFor(userID string, category alerts.Category, company string) *sync.Mutex {
	key := userID + "|" + category.String() + "|" + company
	actual, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
