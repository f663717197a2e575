// Package sns publishes account events to an SNS topic.
package sns

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"krtbank/internal/events"
)

const Name = "SNS"

// API is the subset of the SNS client the publisher uses.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Publisher struct {
	client   API
	topicArn string
}

func New(client API, topicArn string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("sns client is required")
	}
	if topicArn == "" {
		return nil, errors.New("sns topic arn is required")
	}
	return &Publisher{client: client, topicArn: topicArn}, nil
}

// NewFromConfig builds the publisher on a regular SNS client.
func NewFromConfig(cfg aws.Config, topicArn string) (*Publisher, error) {
	return New(sns.NewFromConfig(cfg), topicArn)
}

func (p *Publisher) Name() string        { return Name }
func (p *Publisher) Destination() string { return p.topicArn }

// Send makes a single Publish call. SDK errors are returned as is; their
// HTTP status drives retry classification.
func (p *Publisher) Send(ctx context.Context, msg events.Message) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicArn),
		Message:           aws.String(string(msg.Body)),
		MessageAttributes: attributes(msg.Attributes),
	})
	return err
}

func attributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}
