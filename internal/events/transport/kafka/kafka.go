// Package kafka carries account events and dead-letter records over Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"krtbank/internal/events"
	"krtbank/pkg/platform/sentinel"
)

const Name = "Kafka"

// Client is the subset of *kgo.Client the producer uses.
type Client interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Producer writes one record per message. The message key becomes the
// record key so that a partition holds every event of an account in order.
type Producer struct {
	client Client
	topic  string
}

func NewProducer(client Client, topic string) (*Producer, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &Producer{client: client, topic: topic}, nil
}

func (p *Producer) Name() string        { return Name }
func (p *Producer) Destination() string { return p.topic }

// Send produces synchronously. Retriable broker errors and record timeouts
// wrap sentinel.ErrUnavailable.
func (p *Producer) Send(ctx context.Context, msg events.Message) error {
	record := &kgo.Record{
		Topic: p.topic,
		Value: msg.Body,
	}
	if msg.Key != "" {
		record.Key = []byte(msg.Key)
	}
	for k, v := range msg.Attributes {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if isRetriable(err) {
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}
	return nil
}

func isRetriable(err error) bool {
	return kerr.IsRetriable(err) ||
		errors.Is(err, kgo.ErrRecordTimeout) ||
		errors.Is(err, kgo.ErrRecordRetries)
}

// TopicAdmin is the subset of *kadm.Client used to bootstrap topics.
type TopicAdmin interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// EnsureTopics creates the topics if they do not exist yet. Broker defaults
// apply for partitions and replication.
func EnsureTopics(ctx context.Context, admin TopicAdmin, topics ...string) error {
	resps, err := admin.CreateTopics(ctx, -1, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resps.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
