// Package relay drains the account change feed into the publication
// pipeline.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"krtbank/internal/events"
	"krtbank/internal/events/pipeline"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultBatchSize = 100
)

// Feed is a change-data-capture source with explicit acknowledgement.
type Feed interface {
	Pending(ctx context.Context, limit int) ([]events.ChangeRecord, error)
	MarkPublished(ctx context.Context, eventIDs []string) error
}

type Processor interface {
	Process(ctx context.Context, records []events.ChangeRecord) (pipeline.Report, error)
}

// Relay polls a Feed and hands each batch to a Processor. A batch is
// acknowledged only after the processor completed it; an interrupted batch
// is redelivered on the next poll, so delivery is at-least-once. Records the
// dead-letter queue did not accept stay pending and are retried as well.
type Relay struct {
	feed      Feed
	processor Processor
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func New(feed Feed, processor Processor, opts ...Option) (*Relay, error) {
	if feed == nil {
		return nil, errors.New("relay feed is required")
	}
	if processor == nil {
		return nil, errors.New("relay processor is required")
	}
	r := &Relay{
		feed:      feed,
		processor: processor,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A failed poll is logged and retried on
// the next tick. A full batch is followed immediately by another poll unless
// some of its records were left pending.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.drain(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, report, err := r.runOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "relay batch failed", "error", err)
			}
			return
		}
		if n < r.batchSize || len(report.Undelivered) > 0 {
			return
		}
	}
}

// RunOnce processes a single batch and acknowledges it.
func (r *Relay) RunOnce(ctx context.Context) (pipeline.Report, error) {
	_, report, err := r.runOnce(ctx)
	return report, err
}

func (r *Relay) runOnce(ctx context.Context) (int, pipeline.Report, error) {
	records, err := r.feed.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, pipeline.Report{}, fmt.Errorf("read change feed: %w", err)
	}
	if len(records) == 0 {
		return 0, pipeline.Report{}, nil
	}

	report, err := r.processor.Process(ctx, records)
	if err != nil {
		return len(records), report, fmt.Errorf("process change batch: %w", err)
	}

	retained := make(map[string]struct{}, len(report.Undelivered))
	for _, id := range report.Undelivered {
		retained[id] = struct{}{}
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := retained[rec.EventID]; ok {
			continue
		}
		ids = append(ids, rec.EventID)
	}
	if len(ids) > 0 {
		if err := r.feed.MarkPublished(ctx, ids); err != nil {
			return len(records), report, fmt.Errorf("acknowledge change batch: %w", err)
		}
	}
	if len(retained) > 0 {
		r.logger.WarnContext(ctx, "change records left pending after dead-letter failure",
			"count", len(retained),
		)
	}
	r.logger.InfoContext(ctx, "change batch relayed",
		"count", len(records),
		"published", report.Published,
		"skipped", report.Skipped,
		"dead_lettered", report.DeadLettered,
		"pending", len(retained),
	)
	return len(records), report, nil
}
