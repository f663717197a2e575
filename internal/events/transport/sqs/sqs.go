// Package sqs sends dead-letter records to an SQS queue.
package sqs

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"krtbank/internal/events"
)

const Name = "SQS"

// API is the subset of the SQS client the sink uses.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Sink struct {
	client   API
	queueURL string
}

func New(client API, queueURL string) (*Sink, error) {
	if client == nil {
		return nil, errors.New("sqs client is required")
	}
	if queueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}
	return &Sink{client: client, queueURL: queueURL}, nil
}

// NewFromConfig builds a sink whose client retries with the SDK standard
// retryer, whatever retryer cfg carries. Nothing retries a dead-letter send
// above this client.
func NewFromConfig(cfg aws.Config, queueURL string) (*Sink, error) {
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.Retryer = retry.NewStandard()
	})
	return New(client, queueURL)
}

func (s *Sink) Name() string        { return Name }
func (s *Sink) Destination() string { return s.queueURL }

func (s *Sink) Send(ctx context.Context, msg events.Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(msg.Body)),
	}
	if len(msg.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(msg.Attributes))
		for k, v := range msg.Attributes {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	_, err := s.client.SendMessage(ctx, input)
	return err
}
