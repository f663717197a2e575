package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"krtbank/internal/platform/config"
)

// DeadLetterDeliveryTimeout bounds how long the dead-letter client keeps
// retrying one record.
const DeadLetterDeliveryTimeout = 30 * time.Second

// NewClient builds a franz-go client for producing. Client-side produce
// retries are limited to a single try so that retry policy stays with the
// event publisher.
func NewClient(cfg config.KafkaConfig, opts ...kgo.Opt) (*kgo.Client, error) {
	return newClient(cfg, append([]kgo.Opt{kgo.RecordRetries(1)}, opts...))
}

// NewDeadLetterClient builds the client for the dead-letter topic. It keeps
// franz-go's record retries, bounded by DeadLetterDeliveryTimeout, since no
// publisher retries above it.
func NewDeadLetterClient(cfg config.KafkaConfig, opts ...kgo.Opt) (*kgo.Client, error) {
	return newClient(cfg, append([]kgo.Opt{kgo.RecordDeliveryTimeout(DeadLetterDeliveryTimeout)}, opts...))
}

func newClient(cfg config.KafkaConfig, opts []kgo.Opt) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}
