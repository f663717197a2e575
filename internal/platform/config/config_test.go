package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := load(lookupFrom(map[string]string{
		"SNS_TOPIC_ARN": "arn:aws:sns:us-east-1:000000000000:accounts",
		"DLQ_QUEUE_URL": "http://localhost:4566/000000000000/accounts-dlq",
	}))
	s.Require().NoError(err)

	s.Equal(TransportSNS, cfg.Transport)
	s.Equal(4, cfg.Publish.MaxAttempts)
	s.Equal(time.Second, cfg.Publish.BaseDelay)
	s.Equal(1, cfg.Publish.Concurrency)
	s.Equal(24*time.Hour, cfg.Redis.CacheTTL)
	s.Equal(2*time.Second, cfg.Relay.Interval)
	s.Equal(100, cfg.Relay.BatchSize)
	s.Equal("json", cfg.Log.Format)
	s.Empty(cfg.MetricsAddr)
}

func (s *ConfigSuite) TestOverrides() {
	cfg, err := load(lookupFrom(map[string]string{
		"EVENT_TRANSPORT":      "Kafka",
		"KAFKA_BROKERS":        "broker-1:9092, broker-2:9092,",
		"CACHE_TTL_DAYS":       "3",
		"PUBLISH_MAX_ATTEMPTS": "6",
		"PUBLISH_BASE_DELAY":   "250ms",
		"PIPELINE_CONCURRENCY": "8",
		"RELAY_INTERVAL":       "500ms",
	}))
	s.Require().NoError(err)

	s.Equal(TransportKafka, cfg.Transport)
	s.Equal([]string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	s.Equal(72*time.Hour, cfg.Redis.CacheTTL)
	s.Equal(6, cfg.Publish.MaxAttempts)
	s.Equal(250*time.Millisecond, cfg.Publish.BaseDelay)
	s.Equal(8, cfg.Publish.Concurrency)
	s.Equal(500*time.Millisecond, cfg.Relay.Interval)
}

func (s *ConfigSuite) TestValidation() {
	s.Run("sns requires topic and queue", func() {
		_, err := load(lookupFrom(map[string]string{}))
		s.ErrorContains(err, "SNS_TOPIC_ARN")
		s.ErrorContains(err, "DLQ_QUEUE_URL")
	})

	s.Run("kafka requires brokers", func() {
		_, err := load(lookupFrom(map[string]string{"EVENT_TRANSPORT": "kafka"}))
		s.ErrorContains(err, "KAFKA_BROKERS")
	})

	s.Run("unknown transport", func() {
		_, err := load(lookupFrom(map[string]string{"EVENT_TRANSPORT": "rabbit"}))
		s.ErrorContains(err, "rabbit")
	})

	s.Run("static credentials come in pairs", func() {
		_, err := load(lookupFrom(map[string]string{
			"EVENT_TRANSPORT":   "kafka",
			"KAFKA_BROKERS":     "localhost:9092",
			"AWS_ACCESS_KEY_ID": "test",
		}))
		s.ErrorContains(err, "must be set together")
	})

	s.Run("malformed numbers are reported", func() {
		_, err := load(lookupFrom(map[string]string{
			"EVENT_TRANSPORT":      "kafka",
			"KAFKA_BROKERS":        "localhost:9092",
			"PUBLISH_MAX_ATTEMPTS": "four",
			"PUBLISH_BASE_DELAY":   "soon",
		}))
		s.ErrorContains(err, "PUBLISH_MAX_ATTEMPTS")
		s.ErrorContains(err, "PUBLISH_BASE_DELAY")
	})

	s.Run("zero attempts rejected", func() {
		_, err := load(lookupFrom(map[string]string{
			"EVENT_TRANSPORT":      "kafka",
			"KAFKA_BROKERS":        "localhost:9092",
			"PUBLISH_MAX_ATTEMPTS": "0",
		}))
		s.ErrorContains(err, "at least 1")
	})
}

func (s *ConfigSuite) TestParseSkipsTransportValidation() {
	cfg, err := parse(lookupFrom(map[string]string{"DATABASE_URL": "postgres://localhost/krtbank"}))
	s.Require().NoError(err)
	s.Equal("postgres://localhost/krtbank", cfg.Postgres.URL)
}
