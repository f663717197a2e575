package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"

	accountstore "krtbank/internal/account/store"
	"krtbank/internal/events"
	"krtbank/internal/events/deadletter"
	eventmetrics "krtbank/internal/events/metrics"
	"krtbank/internal/events/pipeline"
	"krtbank/internal/events/publisher"
	"krtbank/internal/events/relay"
	kafkatransport "krtbank/internal/events/transport/kafka"
	snstransport "krtbank/internal/events/transport/sns"
	sqstransport "krtbank/internal/events/transport/sqs"
	platformaws "krtbank/internal/platform/aws"
	"krtbank/internal/platform/config"
	"krtbank/internal/platform/httpserver"
	platformkafka "krtbank/internal/platform/kafka"
	"krtbank/internal/platform/logger"
	opsmetrics "krtbank/internal/platform/metrics"
	"krtbank/internal/platform/postgres"
)

// main publishes account change events. With -input it replays one
// stream-shaped batch and exits; otherwise it relays the Postgres change
// feed until interrupted.
func main() {
	input := flag.String("input", "", "replay a change stream batch from a file, or - for stdin")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *input); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("event publisher stopped", "error", err)
		os.Exit(1)
	}
}

type transports struct {
	primary publisher.Transport
	dlq     deadletter.Sink
	probes  map[string]opsmetrics.Probe
	close   func()
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, input string) error {
	m := eventmetrics.New()

	t, err := buildTransports(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.close()

	pub, err := publisher.New(t.primary, publisher.Config{
		MaxAttempts: cfg.Publish.MaxAttempts,
		BaseDelay:   cfg.Publish.BaseDelay,
	}, publisher.WithLogger(log), publisher.WithMetrics(m))
	if err != nil {
		return err
	}
	name, destination := pub.Target()
	fwd := deadletter.New(t.dlq, deadletter.Target{Name: name, Destination: destination},
		deadletter.WithLogger(log), deadletter.WithMetrics(m))

	pipe, err := pipeline.New(events.NewMapper(), pub, fwd,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithConcurrency(cfg.Publish.Concurrency),
	)
	if err != nil {
		return err
	}

	if input != "" {
		return replay(ctx, pipe, input, log)
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	t.probes["postgres"] = db.PingContext

	feed := accountstore.NewPostgres(db)
	if err := feed.EnsureSchema(ctx); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := httpserver.New(cfg.MetricsAddr, opsmetrics.NewRouter(prometheus.DefaultGatherer, t.probes))
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	r, err := relay.New(feed, pipe,
		relay.WithLogger(log),
		relay.WithInterval(cfg.Relay.Interval),
		relay.WithBatchSize(cfg.Relay.BatchSize),
	)
	if err != nil {
		return err
	}
	log.Info("relaying account changes", "transport", name, "destination", destination)
	return r.Run(ctx)
}

func buildTransports(ctx context.Context, cfg config.Config) (*transports, error) {
	switch cfg.Transport {
	case config.TransportKafka:
		client, err := platformkafka.NewClient(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		dlqClient, err := platformkafka.NewDeadLetterClient(cfg.Kafka)
		if err != nil {
			client.Close()
			return nil, err
		}
		closeAll := func() {
			dlqClient.Close()
			client.Close()
		}
		if err := kafkatransport.EnsureTopics(ctx, kadm.NewClient(client), cfg.Kafka.EventsTopic, cfg.Kafka.DLQTopic); err != nil {
			closeAll()
			return nil, err
		}
		primary, err := kafkatransport.NewProducer(client, cfg.Kafka.EventsTopic)
		if err != nil {
			closeAll()
			return nil, err
		}
		dlq, err := kafkatransport.NewProducer(dlqClient, cfg.Kafka.DLQTopic)
		if err != nil {
			closeAll()
			return nil, err
		}
		return &transports{
			primary: primary,
			dlq:     dlq,
			probes:  map[string]opsmetrics.Probe{"kafka": client.Ping},
			close:   closeAll,
		}, nil
	default:
		awsCfg, err := platformaws.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		primary, err := snstransport.NewFromConfig(awsCfg, cfg.AWS.TopicArn)
		if err != nil {
			return nil, err
		}
		dlq, err := sqstransport.NewFromConfig(awsCfg, cfg.AWS.DLQQueueURL)
		if err != nil {
			return nil, err
		}
		return &transports{
			primary: primary,
			dlq:     dlq,
			probes:  map[string]opsmetrics.Probe{},
			close:   func() {},
		}, nil
	}
}

// replay runs one batch. Per-record failures are dead-lettered and do not
// fail the run.
func replay(ctx context.Context, pipe *pipeline.Pipeline, input string, log *slog.Logger) error {
	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	records, err := events.DecodeStreamEvent(r)
	if err != nil {
		return err
	}
	report, err := pipe.Process(ctx, records)
	log.Info("replay finished",
		"records", len(records),
		"published", report.Published,
		"skipped", report.Skipped,
		"dead_lettered", report.DeadLettered,
	)
	return err
}
