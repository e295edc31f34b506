package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotifyPublishesAlert(t *testing.T) {
	t.Parallel()

	var got *pubsub.Message
	n := newNotifier(func(_ context.Context, msg *pubsub.Message) (string, error) {
		got = msg
		return "msg-1", nil
	}, nil, nil)
	n.now = func() time.Time { return time.Date(2025, 11, 15, 6, 0, 0, 0, time.UTC) }

	n.Notify(context.Background(), "auction-alerts", "Error uploading file to s3")

	require.NotNil(t, got)
	require.Equal(t, "auction-alerts", got.Attributes["topic"])
	var alert Alert
	require.NoError(t, json.Unmarshal(got.Data, &alert))
	require.Equal(t, Alert{
		Topic:   "auction-alerts",
		Message: "Error uploading file to s3",
		SentAt:  time.Date(2025, 11, 15, 6, 0, 0, 0, time.UTC),
	}, alert)
}

func TestNotifyLogsFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	n := newNotifier(func(context.Context, *pubsub.Message) (string, error) {
		return "", errors.New("deadline exceeded")
	}, nil, zap.New(core))

	require.NotPanics(t, func() { n.Notify(context.Background(), "t", "m") })
	require.Equal(t, 1, logs.FilterMessage("pubsub notification failed").Len())

	unconfigured := New(nil, zap.New(core))
	unconfigured.Notify(context.Background(), "t", "m")
	require.Equal(t, 2, logs.FilterMessage("pubsub notification failed").Len())
	unconfigured.Close()
}

func TestCloseStopsPublisher(t *testing.T) {
	t.Parallel()

	stopped := false
	n := newNotifier(nil, func() { stopped = true }, nil)
	n.Close()
	require.True(t, stopped)
}

func TestCarrierKeys(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	require.Equal(t, "00-abc", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
}
