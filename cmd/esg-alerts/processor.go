package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/kritinkaul/automated-esg-tracker/internal/consumer"
	"github.com/kritinkaul/automated-esg-tracker/internal/database"
	"github.com/kritinkaul/automated-esg-tracker/internal/engine"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
	"github.com/kritinkaul/automated-esg-tracker/internal/metrics"
)

const workerCount = 10

// work represents a unit of work for the worker pool.
type work struct {
	event *events.ChangeEvent
	msg   *kafka.Message
}

// processorDeps holds all dependencies needed for change event processing.
type processorDeps struct {
	consumer *consumer.Consumer
	engine   *engine.Engine
	metrics  metrics.Recorder
}

// processChangeEvents reads change events from Kafka and fans them out
// through the alert engine concurrently. The engine's dedup window makes
// redelivered events safe to reprocess.
func processChangeEvents(ctx context.Context, kafkaConsumer *consumer.Consumer, eng *engine.Engine, m metrics.Recorder) error {
	slog.Info("Starting change event processing loop", "workers", workerCount)

	deps := &processorDeps{
		consumer: kafkaConsumer,
		engine:   eng,
		metrics:  m,
	}

	jobs := make(chan work, workerCount*2)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go runWorker(ctx, deps, jobs, &wg)
	}

	dispatchMessages(ctx, deps, jobs)

	close(jobs)
	wg.Wait()
	slog.Info("Change event processing loop stopped")
	return nil
}

// runWorker processes jobs from the channel until it's closed.
func runWorker(ctx context.Context, deps *processorDeps, jobs <-chan work, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		processOne(ctx, deps, job.event, job.msg)
	}
}

// dispatchMessages reads messages from Kafka and dispatches them to workers.
func dispatchMessages(ctx context.Context, deps *processorDeps, jobs chan<- work) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			ev, msg, err := deps.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to read change event", "error", err)
				if msg != nil {
					// Undecodable message: commit past it so the
					// partition does not stall.
					commitOffset(ctx, deps.consumer, msg)
				}
				continue
			}
			jobs <- work{event: ev, msg: msg}
		}
	}
}

// processOne runs the alert fan-out for a single change event and commits
// the offset once the event has reached a terminal outcome.
func processOne(ctx context.Context, deps *processorDeps, ev *events.ChangeEvent, msg *kafka.Message) {
	summary, err := deps.engine.ProcessChangeEvent(ctx, ev)
	if err != nil {
		if errors.Is(err, database.ErrUnavailable) {
			// Don't commit: the event will be redelivered once the
			// store is back, and the dedup window suppresses any
			// notifications that already went out.
			slog.Error("Storage unavailable during fan-out, will retry on redelivery",
				"category", ev.Category,
				"company", ev.Company,
				"error", err,
			)
			return
		}
		// Malformed event (e.g. unknown category): log and commit past it.
		slog.Error("Dropping unprocessable change event",
			"category", ev.Category,
			"company", ev.Company,
			"error", err,
		)
		commitOffset(ctx, deps.consumer, msg)
		return
	}

	slog.Info("Processed change event",
		"category", ev.Category,
		"company", ev.Company,
		"attempted", summary.Attempted,
		"sent", summary.Sent,
		"suppressed", summary.Suppressed,
		"failed", summary.Failed,
	)

	commitOffset(ctx, deps.consumer, msg)
}

// commitOffset commits the Kafka offset for the given message.
func commitOffset(ctx context.Context, c *consumer.Consumer, msg *kafka.Message) {
	if err := c.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit offset", "error", err)
	}
}
