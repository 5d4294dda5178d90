package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/composer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

// fakeSubs is a SubscriptionSource with function fields for overriding behavior.
type fakeSubs struct {
	findFn   func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error)
	digestFn func(ctx context.Context, cadence alerts.Cadence) ([]*database.Match, error)
}

func (f *fakeSubs) FindMatching(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
	if f.findFn != nil {
		return f.findFn(ctx, category, company)
	}
	return nil, nil
}

func (f *fakeSubs) ListDigestSubscriptions(ctx context.Context, cadence alerts.Cadence) ([]*database.Match, error) {
	if f.digestFn != nil {
		return f.digestFn(ctx, cadence)
	}
	return nil, nil
}

// memLog is an in-memory DeliveryLog.
type memLog struct {
	mu       sync.Mutex
	rows     []*database.Delivery
	recentFn func(ctx context.Context, userID string, category alerts.Category, company string, within time.Duration) ([]*database.Delivery, error)
}

func (l *memLog) RecordDelivery(ctx context.Context, userID string, category alerts.Category, company, subject string, outcome alerts.Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, &database.Delivery{
		UserID:   userID,
		Category: category,
		Company:  company,
		Subject:  subject,
		Outcome:  outcome,
		SentAt:   time.Now().UTC(),
	})
	return true
}

func (l *memLog) RecentDeliveries(ctx context.Context, userID string, category alerts.Category, company string, within time.Duration) ([]*database.Delivery, error) {
	if l.recentFn != nil {
		return l.recentFn(ctx, userID, category, company, within)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().UTC().Add(-within)
	var out []*database.Delivery
	for _, r := range l.rows {
		if r.UserID == userID && r.Category == category && r.Company == company && r.SentAt.After(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memLog) outcomes() map[alerts.Outcome]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[alerts.Outcome]int)
	for _, r := range l.rows {
		counts[r.Outcome]++
	}
	return counts
}

// fakeTransport records sent messages and can be forced to fail.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	sendFn func(ctx context.Context, to string, msg composer.Message) error
}

func (t *fakeTransport) Send(ctx context.Context, to string, msg composer.Message) error {
	if t.sendFn != nil {
		if err := t.sendFn(ctx, to, msg); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, to)
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func match(userID, email string, threshold float64) *database.Match {
	return &database.Match{
		Subscription: database.Subscription{
			SubscriptionID: "sub-" + userID,
			UserID:         userID,
			Category:       alerts.CategoryScoreChange,
			Threshold:      threshold,
			Active:         true,
		},
		Email: email,
	}
}

func scoreEvent(prev, next float64) *events.ChangeEvent {
	return &events.ChangeEvent{
		Category:      "score_change",
		Company:       "AAPL",
		PreviousValue: prev,
		NewValue:      next,
		ObservedAt:    time.Now().UTC(),
	}
}

func TestEngine_ProcessChangeEvent_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		prev      float64
		next      float64
		want      Summary
	}{
		{
			name:      "below threshold does not match",
			threshold: 0.05,
			prev:      7.8,
			next:      8.0, // ~0.0256
			want:      Summary{},
		},
		{
			name:      "above threshold matches",
			threshold: 0.05,
			prev:      7.8,
			next:      8.5, // ~0.0897
			want:      Summary{Attempted: 1, Sent: 1},
		},
		{
			name:      "exactly at threshold matches",
			threshold: 0.05,
			prev:      100,
			next:      105, // exactly 0.05
			want:      Summary{Attempted: 1, Sent: 1},
		},
		{
			name:      "zero threshold always matches",
			threshold: 0,
			prev:      100,
			next:      100.001,
			want:      Summary{Attempted: 1, Sent: 1},
		},
		{
			name:      "negative change matched by absolute value",
			threshold: 0.05,
			prev:      100,
			next:      90,
			want:      Summary{Attempted: 1, Sent: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubs{
				findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
					return []*database.Match{match("u1", "a@x.com", tt.threshold)}, nil
				},
			}
			log := &memLog{}
			transport := &fakeTransport{}
			e := NewEngine(subs, log, transport, nil)

			got, err := e.ProcessChangeEvent(context.Background(), scoreEvent(tt.prev, tt.next))
			if err != nil {
				t.Fatalf("ProcessChangeEvent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ProcessChangeEvent() = %+v, want %+v", got, tt.want)
			}
			if transport.sentCount() != tt.want.Sent {
				t.Errorf("transport sent %d messages, want %d", transport.sentCount(), tt.want.Sent)
			}
		})
	}
}

func TestEngine_ProcessChangeEvent_SkipsUndefinedChange(t *testing.T) {
	findCalled := false
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			findCalled = true
			return nil, nil
		},
	}
	e := NewEngine(subs, &memLog{}, &fakeTransport{}, nil)

	got, err := e.ProcessChangeEvent(context.Background(), scoreEvent(0, 8.0))
	if err != nil {
		t.Fatalf("ProcessChangeEvent() error = %v", err)
	}
	if got != (Summary{}) {
		t.Errorf("ProcessChangeEvent() = %+v, want empty summary", got)
	}
	if findCalled {
		t.Error("FindMatching should not be called for an event with zero previous value")
	}
}

func TestEngine_ProcessChangeEvent_UnknownCategory(t *testing.T) {
	e := NewEngine(&fakeSubs{}, &memLog{}, &fakeTransport{}, nil)

	ev := scoreEvent(7.8, 8.5)
	ev.Category = "bogus"
	if _, err := e.ProcessChangeEvent(context.Background(), ev); err == nil {
		t.Fatal("ProcessChangeEvent() expected error for unknown category")
	}
}

func TestEngine_ProcessChangeEvent_DedupSuppressesSecondRun(t *testing.T) {
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return []*database.Match{match("u1", "a@x.com", 0.05)}, nil
		},
	}
	log := &memLog{}
	transport := &fakeTransport{}
	e := NewEngine(subs, log, transport, nil)

	ev := scoreEvent(7.8, 8.5)

	first, err := e.ProcessChangeEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	second, err := e.ProcessChangeEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}

	if want := (Summary{Attempted: 1, Sent: 1}); first != want {
		t.Errorf("first run = %+v, want %+v", first, want)
	}
	if want := (Summary{Attempted: 1, Suppressed: 1}); second != want {
		t.Errorf("second run = %+v, want %+v", second, want)
	}
	if transport.sentCount() != 1 {
		t.Errorf("transport sent %d messages, want 1", transport.sentCount())
	}

	counts := log.outcomes()
	if counts[alerts.OutcomeSent] != 1 || counts[alerts.OutcomeSuppressed] != 1 {
		t.Errorf("delivery outcomes = %v, want 1 sent and 1 suppressed", counts)
	}
}

func TestEngine_ProcessChangeEvent_TransportFailureIsolated(t *testing.T) {
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return []*database.Match{
				match("u1", "fail@x.com", 0),
				match("u2", "ok@x.com", 0),
			}, nil
		},
	}
	log := &memLog{}
	transport := &fakeTransport{
		sendFn: func(ctx context.Context, to string, msg composer.Message) error {
			if to == "fail@x.com" {
				return errors.New("smtp: connection refused")
			}
			return nil
		},
	}
	e := NewEngine(subs, log, transport, nil)

	got, err := e.ProcessChangeEvent(context.Background(), scoreEvent(100, 110))
	if err != nil {
		t.Fatalf("ProcessChangeEvent() error = %v", err)
	}

	if want := (Summary{Attempted: 2, Sent: 1, Failed: 1}); got != want {
		t.Errorf("ProcessChangeEvent() = %+v, want %+v", got, want)
	}

	counts := log.outcomes()
	if counts[alerts.OutcomeSent] != 1 || counts[alerts.OutcomeTransportFailed] != 1 {
		t.Errorf("delivery outcomes = %v, want 1 sent and 1 transport_failed", counts)
	}
}

func TestEngine_ProcessChangeEvent_StorageUnavailableAborts(t *testing.T) {
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return []*database.Match{match("u1", "a@x.com", 0)}, nil
		},
	}
	log := &memLog{
		recentFn: func(ctx context.Context, userID string, category alerts.Category, company string, within time.Duration) ([]*database.Delivery, error) {
			return nil, database.ErrUnavailable
		},
	}
	transport := &fakeTransport{}
	e := NewEngine(subs, log, transport, nil)

	_, err := e.ProcessChangeEvent(context.Background(), scoreEvent(100, 110))
	if !errors.Is(err, database.ErrUnavailable) {
		t.Fatalf("ProcessChangeEvent() error = %v, want ErrUnavailable", err)
	}
	if transport.sentCount() != 0 {
		t.Errorf("transport sent %d messages, want 0", transport.sentCount())
	}
}

func TestEngine_ProcessChangeEvent_FindMatchingError(t *testing.T) {
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return nil, database.ErrUnavailable
		},
	}
	e := NewEngine(subs, &memLog{}, &fakeTransport{}, nil)

	if _, err := e.ProcessChangeEvent(context.Background(), scoreEvent(100, 110)); !errors.Is(err, database.ErrUnavailable) {
		t.Fatalf("ProcessChangeEvent() error = %v, want ErrUnavailable", err)
	}
}

func TestEngine_SendDigests(t *testing.T) {
	digestMatch := func(userID, email string) *database.Match {
		m := match(userID, email, 0.5) // threshold must be ignored for digests
		m.Category = alerts.CategoryDigest
		m.Cadence = alerts.CadenceWeekly
		return m
	}

	subs := &fakeSubs{
		digestFn: func(ctx context.Context, cadence alerts.Cadence) ([]*database.Match, error) {
			if cadence != alerts.CadenceWeekly {
				t.Errorf("cadence = %q, want weekly", cadence)
			}
			return []*database.Match{
				digestMatch("u1", "a@x.com"),
				digestMatch("u2", "b@x.com"),
			}, nil
		},
	}
	log := &memLog{}
	transport := &fakeTransport{}
	e := NewEngine(subs, log, transport, nil)

	payload := events.DigestPayload{
		TopPerformers: []events.CompanyScore{{Company: "AAPL", Score: 8.5}},
		WatchList:     []events.CompanyScore{{Company: "XOM", Score: 3.2}},
		Highlights:    []string{"Sector emissions down 4% quarter over quarter"},
	}

	got, err := e.SendDigests(context.Background(), alerts.CadenceWeekly, payload)
	if err != nil {
		t.Fatalf("SendDigests() error = %v", err)
	}
	if want := (Summary{Attempted: 2, Sent: 2}); got != want {
		t.Errorf("SendDigests() = %+v, want %+v", got, want)
	}
}

func TestEngine_SendDigests_DedupOnRerun(t *testing.T) {
	subs := &fakeSubs{
		digestFn: func(ctx context.Context, cadence alerts.Cadence) ([]*database.Match, error) {
			m := match("u1", "a@x.com", 0)
			m.Category = alerts.CategoryDigest
			return []*database.Match{m}, nil
		},
	}
	log := &memLog{}
	e := NewEngine(subs, log, &fakeTransport{}, nil)

	if _, err := e.SendDigests(context.Background(), alerts.CadenceDaily, events.DigestPayload{}); err != nil {
		t.Fatalf("first SendDigests() error = %v", err)
	}
	second, err := e.SendDigests(context.Background(), alerts.CadenceDaily, events.DigestPayload{})
	if err != nil {
		t.Fatalf("second SendDigests() error = %v", err)
	}
	if want := (Summary{Attempted: 1, Suppressed: 1}); second != want {
		t.Errorf("second SendDigests() = %+v, want %+v", second, want)
	}
}

func TestEngine_Dispatch_DeadlineStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Already expired

	var matches []*database.Match
	for i := 0; i < 50; i++ {
		matches = append(matches, match("u1", "a@x.com", 0))
	}
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return matches, nil
		},
	}
	e := NewEngine(subs, &memLog{}, &fakeTransport{}, nil)

	_, err := e.ProcessChangeEvent(ctx, scoreEvent(100, 110))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessChangeEvent() error = %v, want context.Canceled", err)
	}
}

func TestEngine_ConcurrentSameTupleSerialized(t *testing.T) {
	// Many subscriptions for the same user and company: the per-tuple lock
	// must ensure only the first attempt sends and the rest are suppressed.
	var matches []*database.Match
	for i := 0; i < 8; i++ {
		matches = append(matches, match("u1", "a@x.com", 0))
	}
	subs := &fakeSubs{
		findFn: func(ctx context.Context, category alerts.Category, company string) ([]*database.Match, error) {
			return matches, nil
		},
	}
	log := &memLog{}
	transport := &fakeTransport{}
	e := NewEngine(subs, log, transport, nil)

	got, err := e.ProcessChangeEvent(context.Background(), scoreEvent(100, 110))
	if err != nil {
		t.Fatalf("ProcessChangeEvent() error = %v", err)
	}
	if got.Sent != 1 {
		t.Errorf("Sent = %d, want 1", got.Sent)
	}
	if got.Suppressed != 7 {
		t.Errorf("Suppressed = %d, want 7", got.Suppressed)
	}
	if transport.sentCount() != 1 {
		t.Errorf("transport sent %d messages, want 1", transport.sentCount())
	}
}
