// Package pipeline runs batches of change records through mapping,
// publication and dead-letter capture, isolating failures per record.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"krtbank/internal/events"
	"krtbank/internal/events/metrics"
)

type Mapper interface {
	Map(record events.ChangeRecord) (events.Event, error)
}

type Publisher interface {
	Send(ctx context.Context, msg events.Message) error
}

type DeadLetter interface {
	OnFailure(ctx context.Context, record events.ChangeRecord, message []byte, err error) bool
}

// Report counts what happened to the records of one batch. Undelivered
// holds the event ids of failed records the dead-letter queue did not
// accept; they have no final outcome and must stay on the feed.
type Report struct {
	Published    int
	Skipped      int
	DeadLettered int
	Undelivered  []string
}

// Handled is the number of records that reached a final outcome.
func (r Report) Handled() int {
	return r.Published + r.Skipped + r.DeadLettered
}

func (r *Report) add(o Report) {
	r.Published += o.Published
	r.Skipped += o.Skipped
	r.DeadLettered += o.DeadLettered
	r.Undelivered = append(r.Undelivered, o.Undelivered...)
}

type Pipeline struct {
	mapper      Mapper
	publisher   Publisher
	deadLetter  DeadLetter
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithConcurrency lets up to n accounts be processed at once. Records of the
// same account are still handled one at a time in batch order.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func New(mapper Mapper, publisher Publisher, deadLetter DeadLetter, opts ...Option) (*Pipeline, error) {
	if mapper == nil {
		return nil, errors.New("pipeline mapper is required")
	}
	if publisher == nil {
		return nil, errors.New("pipeline publisher is required")
	}
	if deadLetter == nil {
		return nil, errors.New("pipeline dead-letter forwarder is required")
	}
	p := &Pipeline{
		mapper:      mapper,
		publisher:   publisher,
		deadLetter:  deadLetter,
		concurrency: 1,
		logger:      slog.Default(),
		tracer:      otel.Tracer("krtbank/events/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process handles every record of the batch. A failing record is
// dead-lettered and processing moves on to the next one, also when the
// dead-letter queue rejects it. If ctx ends, the
// batch stops, the interrupted record is not dead-lettered, and ctx.Err()
// is returned with the partial report: cancellation is an infrastructure
// condition and the records are left for redelivery.
func (p *Pipeline) Process(ctx context.Context, records []events.ChangeRecord) (Report, error) {
	p.logger.InfoContext(ctx, "processing change records", "count", len(records))
	if p.concurrency <= 1 {
		return p.processSequential(ctx, records)
	}
	return p.processPartitioned(ctx, records)
}

func (p *Pipeline) processSequential(ctx context.Context, records []events.ChangeRecord) (Report, error) {
	var report Report
	for _, record := range records {
		outcome, err := p.handle(ctx, record)
		if err != nil {
			return report, err
		}
		report.add(outcome)
	}
	return report, nil
}

func (p *Pipeline) processPartitioned(ctx context.Context, records []events.ChangeRecord) (Report, error) {
	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, partition := range partitionByAccount(records) {
		g.Go(func() error {
			partial, err := p.processSequential(gctx, partition)
			mu.Lock()
			report.add(partial)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

func (p *Pipeline) handle(ctx context.Context, record events.ChangeRecord) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.record", trace.WithAttributes(
		attribute.String("cdc.operation", string(record.Operation)),
		attribute.String("cdc.event_id", record.EventID),
		attribute.String("account.id", record.AccountID()),
	))
	defer span.End()

	event, err := p.mapper.Map(record)
	if err != nil {
		return p.fail(ctx, span, record, nil, err), nil
	}
	if event == nil {
		p.metrics.IncSkipped()
		p.logger.DebugContext(ctx, "skipping change record with unknown operation",
			"event_id", record.EventID,
			"operation", record.Operation,
		)
		return Report{Skipped: 1}, nil
	}

	msg, err := events.Encode(event)
	if err != nil {
		return p.fail(ctx, span, record, nil, err), nil
	}

	if err := p.publisher.Send(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			p.logger.WarnContext(ctx, "publish interrupted by cancellation",
				"event_id", record.EventID,
				"event_type", event.EventType(),
			)
			return Report{}, ctxErr
		}
		return p.fail(ctx, span, record, msg.Body, err), nil
	}

	p.logger.InfoContext(ctx, "published event",
		"event_type", event.EventType(),
		"account_id", event.AggregateID(),
	)
	return Report{Published: 1}, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, record events.ChangeRecord, message []byte, err error) Report {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.ErrorContext(ctx, "failed to publish change record",
		"event_id", record.EventID,
		"operation", record.Operation,
		"error", err,
	)
	if !p.deadLetter.OnFailure(ctx, record, message, err) {
		return Report{Undelivered: []string{record.EventID}}
	}
	return Report{DeadLettered: 1}
}

// partitionByAccount groups records by account id, keeping batch order
// inside each group and ordering groups by first appearance.
func partitionByAccount(records []events.ChangeRecord) [][]events.ChangeRecord {
	index := make(map[string]int)
	var partitions [][]events.ChangeRecord
	for _, record := range records {
		key := record.AccountID()
		i, ok := index[key]
		if !ok {
			i = len(partitions)
			index[key] = i
			partitions = append(partitions, nil)
		}
		partitions[i] = append(partitions[i], record)
	}
	return partitions
}
