package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"krtbank/internal/events"
	"krtbank/internal/events/publisher"
	"krtbank/pkg/platform/sentinel"
)

type fakeClient struct {
	records []*kgo.Record
	err     error
}

func (f *fakeClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestSendProducesKeyedRecordWithHeaders(t *testing.T) {
	client := &fakeClient{}
	p, err := NewProducer(client, "account-events")
	require.NoError(t, err)

	err = p.Send(context.Background(), events.Message{
		Key:        "acc-1",
		Body:       []byte(`{"type":"AccountDeleted"}`),
		Attributes: map[string]string{events.AttributeEventType: events.TypeAccountDeleted},
	})
	require.NoError(t, err)
	require.Len(t, client.records, 1)

	rec := client.records[0]
	assert.Equal(t, "account-events", rec.Topic)
	assert.Equal(t, []byte("acc-1"), rec.Key)
	assert.Equal(t, []byte(`{"type":"AccountDeleted"}`), rec.Value)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, events.AttributeEventType, rec.Headers[0].Key)
	assert.Equal(t, []byte(events.TypeAccountDeleted), rec.Headers[0].Value)
}

func TestSendWithoutKeyLeavesRecordUnkeyed(t *testing.T) {
	client := &fakeClient{}
	p, err := NewProducer(client, "account-dlq")
	require.NoError(t, err)

	require.NoError(t, p.Send(context.Background(), events.Message{Body: []byte("{}")}))
	assert.Nil(t, client.records[0].Key)
}

func TestSendClassifiesBrokerErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"leader moved", kerr.NotLeaderForPartition, true},
		{"record timeout", kgo.ErrRecordTimeout, true},
		{"message too large", kerr.MessageTooLarge, false},
		{"authorization", kerr.TopicAuthorizationFailed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProducer(&fakeClient{err: tc.err}, "account-events")
			require.NoError(t, err)

			err = p.Send(context.Background(), events.Message{Body: []byte("{}")})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.transient, errors.Is(err, sentinel.ErrUnavailable))
			assert.Equal(t, tc.transient, publisher.IsTransient(err))
		})
	}
}

type fakeAdmin struct {
	resps kadm.CreateTopicResponses
	err   error
}

func (f *fakeAdmin) CreateTopics(_ context.Context, _ int32, _ int16, _ map[string]*string, _ ...string) (kadm.CreateTopicResponses, error) {
	return f.resps, f.err
}

func TestEnsureTopics(t *testing.T) {
	t.Run("existing topics are fine", func(t *testing.T) {
		admin := &fakeAdmin{resps: kadm.CreateTopicResponses{
			"account-events": {Topic: "account-events", Err: kerr.TopicAlreadyExists},
			"account-dlq":    {Topic: "account-dlq"},
		}}
		assert.NoError(t, EnsureTopics(context.Background(), admin, "account-events", "account-dlq"))
	})

	t.Run("other per-topic errors fail", func(t *testing.T) {
		admin := &fakeAdmin{resps: kadm.CreateTopicResponses{
			"account-events": {Topic: "account-events", Err: kerr.InvalidReplicationFactor},
		}}
		assert.ErrorIs(t, EnsureTopics(context.Background(), admin, "account-events"), kerr.InvalidReplicationFactor)
	})

	t.Run("request errors fail", func(t *testing.T) {
		admin := &fakeAdmin{err: errors.New("no brokers")}
		assert.ErrorContains(t, EnsureTopics(context.Background(), admin, "account-events"), "no brokers")
	})
}
