package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "krtbank/pkg/platform/strings"
)

// Supported primary transports.
const (
	TransportSNS   = "sns"
	TransportKafka = "kafka"
)

// Config is read once at startup and passed into constructors.
type Config struct {
	Transport string
	AWS       AWSConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Publish   PublishConfig
	Relay     RelayConfig
	Log       LogConfig
	// MetricsAddr enables the /metrics and /healthz listener when set.
	MetricsAddr string
}

type AWSConfig struct {
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	TopicArn        string
	DLQQueueURL     string
}

type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
	DLQTopic    string
}

type RedisConfig struct {
	URL          string
	CacheTTL     time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	URL string
}

type PublishConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Concurrency int
}

type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds the configuration from environment variables and validates
// the event transport settings.
func FromEnv() (Config, error) {
	return load(os.LookupEnv)
}

// StoreFromEnv parses the same variables without requiring an event
// transport, for tools that only touch the account store and cache.
func StoreFromEnv() (Config, error) {
	return parse(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg, err := parse(lookup)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(lookup func(string) (string, bool)) (Config, error) {
	env := reader{lookup: lookup}

	cfg := Config{
		Transport: strings.ToLower(env.str("EVENT_TRANSPORT", TransportSNS)),
		AWS: AWSConfig{
			Region:          env.str("AWS_REGION", "us-east-1"),
			EndpointURL:     env.str("AWS_ENDPOINT_URL", ""),
			AccessKeyID:     env.str("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.str("AWS_SECRET_ACCESS_KEY", ""),
			TopicArn:        env.str("SNS_TOPIC_ARN", ""),
			DLQQueueURL:     env.str("DLQ_QUEUE_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     env.list("KAFKA_BROKERS"),
			EventsTopic: env.str("KAFKA_EVENTS_TOPIC", "account-events"),
			DLQTopic:    env.str("KAFKA_DLQ_TOPIC", "account-events-dlq"),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			CacheTTL:     time.Duration(env.number("CACHE_TTL_DAYS", 1)) * 24 * time.Hour,
			PoolSize:     env.number("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.number("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: env.str("DATABASE_URL", ""),
		},
		Publish: PublishConfig{
			MaxAttempts: env.number("PUBLISH_MAX_ATTEMPTS", 4),
			BaseDelay:   env.duration("PUBLISH_BASE_DELAY", time.Second),
			Concurrency: env.number("PIPELINE_CONCURRENCY", 1),
		},
		Relay: RelayConfig{
			Interval:  env.duration("RELAY_INTERVAL", 2*time.Second),
			BatchSize: env.number("RELAY_BATCH_SIZE", 100),
		},
		Log: LogConfig{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
		MetricsAddr: env.str("METRICS_ADDR", ""),
	}

	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}
	return cfg, nil
}

// Validate checks that the selected transport has its destinations.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportSNS:
		if c.AWS.TopicArn == "" {
			errs = append(errs, errors.New("SNS_TOPIC_ARN is required for the sns transport"))
		}
		if c.AWS.DLQQueueURL == "" {
			errs = append(errs, errors.New("DLQ_QUEUE_URL is required for the sns transport"))
		}
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENT_TRANSPORT %q is not one of sns, kafka", c.Transport))
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together"))
	}
	if c.Publish.MaxAttempts < 1 {
		errs = append(errs, errors.New("PUBLISH_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Publish.BaseDelay <= 0 {
		errs = append(errs, errors.New("PUBLISH_BASE_DELAY must be positive"))
	}
	if c.Publish.Concurrency < 1 {
		errs = append(errs, errors.New("PIPELINE_CONCURRENCY must be at least 1"))
	}
	if c.Relay.BatchSize < 1 {
		errs = append(errs, errors.New("RELAY_BATCH_SIZE must be at least 1"))
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) number(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	return platformstrings.SplitList(r.str(key, ""))
}
