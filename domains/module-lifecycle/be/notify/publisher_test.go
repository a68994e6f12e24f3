package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/events"
)

type mockEvents struct {
	publishFn func(ctx context.Context, topic string, ev events.Event) (int64, error)
}

func (m *mockEvents) Publish(ctx context.Context, topic string, ev events.Event) (int64, error) {
	if m.publishFn == nil {
		panic("publishFn not configured")
	}
	return m.publishFn(ctx, topic, ev)
}

func TestProvisioningRequestedPublishesEvent(t *testing.T) {
	t.Parallel()

	tenant := uuid.New()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var gotTopic string
	var gotEvent events.Event

	pub, err := NewPublisher(&mockEvents{publishFn: func(ctx context.Context, topic string, ev events.Event) (int64, error) {
		gotTopic, gotEvent = topic, ev
		return 0, nil
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = pub.ProvisioningRequested(context.Background(), service.ProvisioningRequest{
		TenantID:    tenant,
		ModuleID:    "analytics",
		Trigger:     "approval",
		RequestID:   "req-1",
		RequestedAt: at,
	})
	require.NoError(t, err)
	require.Equal(t, TopicProvisioningRequested, gotTopic)
	require.Equal(t, "req-1", gotEvent.RequestID)
	require.Equal(t, at, gotEvent.OccurredAt)

	data, ok := gotEvent.Data.(provisioningEvent)
	require.True(t, ok)
	require.Equal(t, tenant, data.TenantID)
	require.Equal(t, "approval", data.Trigger)
}

func TestApprovalDecidedPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")
	pub, err := NewPublisher(&mockEvents{publishFn: func(ctx context.Context, topic string, ev events.Event) (int64, error) {
		require.Equal(t, TopicApprovalDecided, topic)
		data := ev.Data.(decisionEvent)
		require.Equal(t, "denied", data.Decision)
		require.Equal(t, "over budget", data.Notes)
		return 0, boom
	}}, nil)
	require.NoError(t, err)

	err = pub.ApprovalDecided(context.Background(), service.ApprovalNotice{
		RequestID: uuid.New(),
		TenantID:  uuid.New(),
		ModuleID:  "analytics",
		Decision:  service.ApprovalDenied,
		Notes:     "over budget",
	})
	require.ErrorIs(t, err, boom)
}

func TestDiscardNeverFails(t *testing.T) {
	t.Parallel()

	d := Discard{Logger: zaptest.NewLogger(t)}
	require.NoError(t, d.ProvisioningRequested(context.Background(), service.ProvisioningRequest{ModuleID: "analytics"}))
	require.NoError(t, Discard{}.ApprovalDecided(context.Background(), service.ApprovalNotice{ModuleID: "analytics"}))
}
