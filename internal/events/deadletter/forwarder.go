// Package deadletter captures publish failures into a secondary queue with
// enough context to replay them.
package deadletter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"krtbank/internal/events"
	"krtbank/internal/events/metrics"
)

// Sink is the durable queue that receives dead-letter records.
type Sink interface {
	Send(ctx context.Context, msg events.Message) error
}

// Target names the primary destination a failed message was meant for.
type Target struct {
	Name        string
	Destination string
}

// Forwarder builds dead-letter records and sends them to a Sink.
type Forwarder struct {
	sink    Sink
	target  Target
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Forwarder) {
		if now != nil {
			f.now = now
		}
	}
}

func New(sink Sink, target Target, opts ...Option) *Forwarder {
	f := &Forwarder{
		sink:   sink,
		target: target,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnFailure forwards one dead-letter record for record. message is the
// attempted payload and may be nil when encoding never happened. Sink
// failures, including panics, are logged and counted and never reach the
// caller; the result reports whether the sink accepted the record.
func (f *Forwarder) OnFailure(ctx context.Context, record events.ChangeRecord, message []byte, cause error) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			delivered = false
			f.metrics.IncDeadLetterSendFailure()
			f.logger.ErrorContext(ctx, "dead-letter sink panicked",
				"event_id", record.EventID,
				"operation", record.Operation,
				"panic", r,
			)
		}
	}()
	f.metrics.IncDeadLettered(string(record.Operation))

	dl := Record{
		Error: describeError(cause),
		Stream: StreamInfo{
			EventName: string(record.Operation),
			EventID:   record.EventID,
		},
		Publish: PublishInfo{
			Target:   f.target.Name,
			TopicArn: f.target.Destination,
			Message:  attemptedMessage(message),
		},
		Meta: MetaInfo{TimestampUTC: f.now().UTC()},
	}

	body, err := json.Marshal(dl)
	if err != nil {
		f.metrics.IncDeadLetterSendFailure()
		f.logger.ErrorContext(ctx, "failed to encode dead-letter record",
			"event_id", record.EventID,
			"operation", record.Operation,
			"error", err,
		)
		return false
	}

	if f.sink == nil {
		f.metrics.IncDeadLetterSendFailure()
		f.logger.ErrorContext(ctx, "no dead-letter sink configured, record dropped",
			"event_id", record.EventID,
			"operation", record.Operation,
			"cause", cause,
		)
		return false
	}

	msg := events.Message{
		Key:        record.AccountID(),
		Body:       body,
		Attributes: map[string]string{events.AttributeContentType: events.ContentTypeJSON},
	}
	if err := f.sink.Send(ctx, msg); err != nil {
		f.metrics.IncDeadLetterSendFailure()
		f.logger.ErrorContext(ctx, "failed to publish on dead-letter queue",
			"event_id", record.EventID,
			"operation", record.Operation,
			"cause", cause,
			"error", err,
		)
		return false
	}

	f.logger.WarnContext(ctx, "change record dead-lettered",
		"event_id", record.EventID,
		"operation", record.Operation,
		"account_id", record.AccountID(),
		"cause", cause,
	)
	return true
}
