package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)

	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(2)
	return cmd
}

func TestPublishEncodesEnvelope(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{}
	pub, err := NewPublisher(client, " retailops. ")
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n, err := pub.Publish(context.Background(), "approval.decided", Event{
		Type:       "approval.decided",
		OccurredAt: at,
		RequestID:  "req-1",
		Data:       map[string]string{"decision": "approved"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.Equal(t, "retailops.approval.decided", client.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.message, &got))
	require.Equal(t, "approval.decided", got["type"])
	require.Equal(t, "2026-03-01T09:00:00Z", got["occurredAt"])
	require.Equal(t, "req-1", got["requestId"])
	require.Equal(t, map[string]any{"decision": "approved"}, got["data"])
}

func TestPublishDefaults(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{}
	pub, err := NewPublisher(client, "")
	require.NoError(t, err)
	require.Equal(t, "module-lifecycle.provisioning.requested", pub.Channel("provisioning.requested"))

	_, err = pub.Publish(context.Background(), " ", Event{Type: "x"})
	require.Error(t, err)

	_, err = pub.Publish(context.Background(), "provisioning.requested", Event{Type: "provisioning.requested"})
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(client.message, &got))
	require.False(t, got.OccurredAt.IsZero())
}

func TestPublishPropagatesRedisError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	pub, err := NewPublisher(&fakeRedis{err: boom}, "retailops")
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), "approval.decided", Event{Type: "approval.decided"})
	require.ErrorIs(t, err, boom)
}

func TestNewPublisherRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewPublisher(nil, "retailops")
	require.Error(t, err)
}
