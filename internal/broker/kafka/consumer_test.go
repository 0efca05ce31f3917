package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume_CallsHandlerAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Topic: "shipment.submitted", Key: []byte("GAE1"), Value: []byte("v")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var gotTopic string
	var gotK, gotV []byte
	err := c.Consume(context.Background(), func(topic string, k, v []byte) error {
		gotTopic, gotK, gotV = topic, k, v
		return nil
	})
	require.Error(t, err)
	require.Equal(t, "shipment.submitted", gotTopic)
	require.Equal(t, []byte("GAE1"), gotK)
	require.Equal(t, []byte("v"), gotV)
	require.Equal(t, 1, fr.committed)
}

func TestConsumer_Consume_HandlerErrorNoCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(topic string, k, v []byte) error { return want })
	require.ErrorIs(t, err, want)
	require.Zero(t, fr.committed)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, []string{"t"}, "g")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
