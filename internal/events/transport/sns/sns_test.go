package sns

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krtbank/internal/events"
	"krtbank/internal/events/publisher"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("api error"),
		},
	}
}

func TestNewRequiresClientAndTopic(t *testing.T) {
	_, err := New(nil, "arn:aws:sns:us-east-1:000000000000:accounts")
	assert.Error(t, err)
	_, err = New(&fakeSNS{}, "")
	assert.Error(t, err)
}

func TestSendPublishesBodyAndStringAttributes(t *testing.T) {
	api := &fakeSNS{}
	p, err := New(api, "arn:aws:sns:us-east-1:000000000000:accounts")
	require.NoError(t, err)

	err = p.Send(context.Background(), events.Message{
		Key:  "acc-1",
		Body: []byte(`{"type":"AccountCreated"}`),
		Attributes: map[string]string{
			events.AttributeEventType:   events.TypeAccountCreated,
			events.AttributeContentType: events.ContentTypeJSON,
		},
	})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:accounts", aws.ToString(in.TopicArn))
	assert.Equal(t, `{"type":"AccountCreated"}`, aws.ToString(in.Message))
	require.Len(t, in.MessageAttributes, 2)
	attr := in.MessageAttributes[events.AttributeEventType]
	assert.Equal(t, "String", aws.ToString(attr.DataType))
	assert.Equal(t, events.TypeAccountCreated, aws.ToString(attr.StringValue))
	assert.Equal(t, Name, p.Name())
}

func TestSDKStatusDrivesRetryClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tc := range cases {
		api := &fakeSNS{err: responseError(tc.status)}
		p, err := New(api, "arn:aws:sns:us-east-1:000000000000:accounts")
		require.NoError(t, err)

		err = p.Send(context.Background(), events.Message{Body: []byte("{}")})
		require.Error(t, err)
		assert.Equal(t, tc.transient, publisher.IsTransient(err), "status %d", tc.status)
	}
}
