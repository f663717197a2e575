// Package publisher delivers encoded account events to a bus with bounded,
// exponentially backed-off retries.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"krtbank/internal/events"
	"krtbank/internal/events/metrics"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
)

// Transport sends one message per call. Implementations must not retry on
// their own and must treat a call as all-or-nothing.
type Transport interface {
	Send(ctx context.Context, msg events.Message) error
	// Name identifies the transport kind, e.g. "SNS".
	Name() string
	// Destination is the topic the transport sends to.
	Destination() string
}

// Config bounds the retry loop. MaxAttempts counts the first attempt.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Publisher serializes events and sends them through a Transport.
type Publisher struct {
	transport Transport
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
	tracer    trace.Tracer
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSleep replaces the backoff wait. The function must return ctx.Err()
// when ctx ends before d elapses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Publisher) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// New constructs a Publisher. Non-positive config values fall back to the
// defaults.
func New(transport Transport, cfg Config, opts ...Option) (*Publisher, error) {
	if transport == nil {
		return nil, errors.New("publisher transport is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	p := &Publisher{
		transport: transport,
		cfg:       cfg,
		logger:    slog.Default(),
		sleep:     sleepContext,
		tracer:    otel.Tracer("krtbank/events/publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Target returns the transport name and destination, for dead-letter records.
func (p *Publisher) Target() (name, destination string) {
	return p.transport.Name(), p.transport.Destination()
}

// Publish encodes event and sends it with retries.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := events.Encode(event)
	if err != nil {
		return err
	}
	return p.Send(ctx, msg)
}

// Send delivers msg. Transient failures are retried after BaseDelay,
// 2*BaseDelay, 4*BaseDelay and so on until MaxAttempts attempts were made.
// A non-transient failure returns after the attempt that produced it. In
// both cases the returned error is a *PublishError. If ctx ends while
// waiting, the context error is returned and no further attempt is made.
func (p *Publisher) Send(ctx context.Context, msg events.Message) error {
	eventType := msg.Attributes[events.AttributeEventType]
	delay := p.cfg.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := p.attempt(ctx, msg, eventType, attempt)
		if err == nil {
			p.metrics.IncPublished(eventType)
			if attempt > 1 {
				p.logger.InfoContext(ctx, "event published after retry",
					"event_type", eventType,
					"attempt", attempt,
				)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err

		if !IsTransient(err) {
			p.metrics.IncAttempt(eventType, metrics.OutcomeFatal)
			return &PublishError{EventType: eventType, Attempts: attempt, Err: err}
		}
		p.metrics.IncAttempt(eventType, metrics.OutcomeRetryable)
		if attempt == p.cfg.MaxAttempts {
			break
		}

		p.logger.WarnContext(ctx, "transient publish failure, backing off",
			"event_type", eventType,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	return &PublishError{
		EventType: eventType,
		Attempts:  p.cfg.MaxAttempts,
		Exhausted: true,
		Err:       lastErr,
	}
}

func (p *Publisher) attempt(ctx context.Context, msg events.Message, eventType string, attempt int) error {
	ctx, span := p.tracer.Start(ctx, "publisher.attempt", trace.WithAttributes(
		attribute.String("messaging.system", p.transport.Name()),
		attribute.String("messaging.destination.name", p.transport.Destination()),
		attribute.String("event.type", eventType),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	start := time.Now()
	err := p.transport.Send(ctx, msg)
	p.metrics.ObservePublishDuration(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s send: %w", p.transport.Name(), err)
	}
	p.metrics.IncAttempt(eventType, metrics.OutcomeSuccess)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
