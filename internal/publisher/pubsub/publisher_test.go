package pubsub

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/require"
)

func TestPublishEncodesPayload(t *testing.T) {
	t.Parallel()

	var got *pubsub.Message
	pub := &Publisher{send: func(_ context.Context, msg *pubsub.Message) (string, error) {
		got = msg
		return "id-1", nil
	}}

	id, err := pub.Publish(context.Background(), "article.written", map[string]string{"url": "https://a.example/x"})
	require.NoError(t, err)
	require.Equal(t, "id-1", id)
	require.NotNil(t, got)
	require.JSONEq(t, `{"url":"https://a.example/x"}`, string(got.Data))
	require.Equal(t, "article.written", got.Attributes[EventAttribute])
}

func TestPublishWrapsSendError(t *testing.T) {
	t.Parallel()

	pub := &Publisher{send: func(context.Context, *pubsub.Message) (string, error) {
		return "", errors.New("unavailable")
	}}
	_, err := pub.Publish(context.Background(), "", "payload")
	require.ErrorContains(t, err, "publish message")
}

func TestUnconfiguredPublisher(t *testing.T) {
	t.Parallel()

	pub := New(nil)
	_, err := pub.Publish(context.Background(), "e", "x")
	require.Error(t, err)
	require.NoError(t, pub.Close())

	_, err = Dial(context.Background(), "", "topic")
	require.Error(t, err)
}
