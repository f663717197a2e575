package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"krtbank/internal/events"
	"krtbank/internal/events/metrics"
	"krtbank/pkg/platform/sentinel"
)

// scriptedTransport returns the scripted errors in order, then succeeds.
type scriptedTransport struct {
	mu     sync.Mutex
	script []error
	sent   []events.Message
}

func (t *scriptedTransport) Send(_ context.Context, msg events.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	if len(t.script) == 0 {
		return nil
	}
	err := t.script[0]
	t.script = t.script[1:]
	return err
}

func (t *scriptedTransport) Name() string        { return "Fake" }
func (t *scriptedTransport) Destination() string { return "arn:aws:sns:us-east-1:000000000000:accounts" }

func (t *scriptedTransport) attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

type PublisherSuite struct {
	suite.Suite
	delays  []time.Duration
	metrics *metrics.Metrics
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.delays = nil
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
}

func (s *PublisherSuite) recordSleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *PublisherSuite) newPublisher(transport Transport, cfg Config) *Publisher {
	p, err := New(transport, cfg,
		WithSleep(s.recordSleep),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	return p
}

func transient() error {
	return &StatusError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("service unavailable")}
}

func sampleEvent() events.Event {
	return events.AccountDeleted{Type: events.TypeAccountDeleted, AccountID: "acc-1", Timestamp: time.Now().UTC()}
}

// =============================================================================
// Construction
// =============================================================================

func (s *PublisherSuite) TestNew() {
	s.Run("nil transport returns error", func() {
		_, err := New(nil, Config{})
		s.Error(err)
	})

	s.Run("non-positive config falls back to defaults", func() {
		p, err := New(&scriptedTransport{}, Config{})
		s.Require().NoError(err)
		s.Equal(DefaultMaxAttempts, p.cfg.MaxAttempts)
		s.Equal(DefaultBaseDelay, p.cfg.BaseDelay)
	})
}

// =============================================================================
// Retry policy
// =============================================================================

func (s *PublisherSuite) TestRetriesTransientFailuresWithDoublingDelay() {
	transport := &scriptedTransport{script: []error{transient(), transient()}}
	p := s.newPublisher(transport, Config{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond})

	err := p.Publish(context.Background(), sampleEvent())

	s.Require().NoError(err)
	s.Equal(3, transport.attempts())
	s.Equal([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, s.delays)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues(events.TypeAccountDeleted)))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.PublishAttempts.WithLabelValues(events.TypeAccountDeleted, metrics.OutcomeRetryable)))
}

func (s *PublisherSuite) TestNonTransientFailureIsNotRetried() {
	cause := &StatusError{StatusCode: http.StatusBadRequest, Err: errors.New("invalid parameter")}
	transport := &scriptedTransport{script: []error{cause}}
	p := s.newPublisher(transport, Config{MaxAttempts: 4, BaseDelay: time.Millisecond})

	err := p.Publish(context.Background(), sampleEvent())

	s.Require().Error(err)
	s.Equal(1, transport.attempts())
	s.Empty(s.delays)
	s.ErrorIs(err, cause)
	s.NotErrorIs(err, ErrRetriesExhausted)

	var pubErr *PublishError
	s.Require().ErrorAs(err, &pubErr)
	s.Equal(1, pubErr.Attempts)
	s.False(pubErr.Exhausted)
}

func (s *PublisherSuite) TestExhaustedRetriesEscalate() {
	transport := &scriptedTransport{script: []error{transient(), transient(), transient(), transient(), transient()}}
	p := s.newPublisher(transport, Config{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond})

	err := p.Publish(context.Background(), sampleEvent())

	s.Require().Error(err)
	s.Equal(4, transport.attempts())
	s.Equal([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, s.delays)
	s.ErrorIs(err, ErrRetriesExhausted)

	var pubErr *PublishError
	s.Require().ErrorAs(err, &pubErr)
	s.Equal(4, pubErr.Attempts)
	s.True(pubErr.Exhausted)
	s.Equal(events.TypeAccountDeleted, pubErr.EventType)
}

func (s *PublisherSuite) TestCancellationDuringBackoffStopsRetries() {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &scriptedTransport{script: []error{transient(), transient()}}
	p, err := New(transport, Config{MaxAttempts: 4, BaseDelay: time.Hour},
		WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	s.Require().NoError(err)

	err = p.Publish(ctx, sampleEvent())

	s.ErrorIs(err, context.Canceled)
	var pubErr *PublishError
	s.False(errors.As(err, &pubErr), "cancellation must not look like a publish failure")
	s.Equal(1, transport.attempts())
}

func (s *PublisherSuite) TestDefaultSleepHonorsContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepContext(ctx, time.Hour)
	s.ErrorIs(err, context.Canceled)
	s.Less(time.Since(start), time.Second)

	s.NoError(sleepContext(context.Background(), time.Millisecond))
}

func (s *PublisherSuite) TestSendsEncodedMessage() {
	transport := &scriptedTransport{}
	p := s.newPublisher(transport, Config{MaxAttempts: 1, BaseDelay: time.Millisecond})

	s.Require().NoError(p.Publish(context.Background(), sampleEvent()))
	s.Require().Len(transport.sent, 1)
	s.Equal(events.TypeAccountDeleted, transport.sent[0].Attributes[events.AttributeEventType])
	s.Equal(events.ContentTypeJSON, transport.sent[0].Attributes[events.AttributeContentType])
	s.Contains(string(transport.sent[0].Body), `"accountId":"acc-1"`)

	name, dest := p.Target()
	s.Equal("Fake", name)
	s.Equal(transport.Destination(), dest)
}

// =============================================================================
// Classification
// =============================================================================

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"internal server error", &StatusError{StatusCode: 500, Err: io.EOF}, true},
		{"service unavailable", &StatusError{StatusCode: 503, Err: io.EOF}, true},
		{"bad gateway", &StatusError{StatusCode: 502, Err: io.EOF}, true},
		{"throttled client error", &StatusError{StatusCode: 400, Err: io.EOF}, false},
		{"not found", &StatusError{StatusCode: 404, Err: io.EOF}, false},
		{"wrapped unavailable", fmt.Errorf("kafka: %w", sentinel.ErrUnavailable), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
