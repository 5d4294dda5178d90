package metrics

import "time"

// Recorder abstracts metrics recording so callers don't depend on a
// concrete backend. A no-op implementation is used when metrics are
// disabled.
type Recorder interface {
	// RecordReceived increments the count of change events received.
	RecordReceived()
	// RecordProcessed increments the count of events processed and records latency.
	RecordProcessed(latency time.Duration)
	// RecordError increments the processing error count.
	RecordError()
	// RecordSent increments the count of notifications sent.
	RecordSent()
	// RecordSuppressed increments the count of notifications suppressed by dedup.
	RecordSuppressed()
	// RecordSendFailed increments the count of transport failures.
	RecordSendFailed()
	// RecordSignup increments the count of signups accepted.
	RecordSignup()
	// RecordVerification increments the count of successful verifications.
	RecordVerification()
}

// NoOpRecorder is a Recorder that does nothing.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a no-op metrics recorder.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (n *NoOpRecorder) RecordReceived()                {}
func (n *NoOpRecorder) RecordProcessed(time.Duration)  {}
func (n *NoOpRecorder) RecordError()                   {}
func (n *NoOpRecorder) RecordSent()                    {}
func (n *NoOpRecorder) RecordSuppressed()              {}
func (n *NoOpRecorder) RecordSendFailed()              {}
func (n *NoOpRecorder) RecordSignup()                  {}
func (n *NoOpRecorder) RecordVerification()            {}

// CollectorAdapter adapts a Collector to the Recorder interface.
// Domain-specific counts are kept as custom counters on the snapshot.
type CollectorAdapter struct {
	collector *Collector
}

// NewCollectorAdapter creates an adapter wrapping the given collector.
func NewCollectorAdapter(collector *Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordProcessed(latency time.Duration) {
	a.collector.RecordProcessed(latency)
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

func (a *CollectorAdapter) RecordSent() {
	a.collector.IncrementCustom("notifications_sent")
}

func (a *CollectorAdapter) RecordSuppressed() {
	a.collector.IncrementCustom("notifications_suppressed")
}

func (a *CollectorAdapter) RecordSendFailed() {
	a.collector.IncrementCustom("notifications_failed")
}

func (a *CollectorAdapter) RecordSignup() {
	a.collector.IncrementCustom("signups")
}

func (a *CollectorAdapter) RecordVerification() {
	a.collector.IncrementCustom("verifications")
}
