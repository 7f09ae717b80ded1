package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyroute/internal/model"
	"supplyroute/internal/store"
	"supplyroute/internal/webhooks"
)

func TestRunOnceRemindsOnlyStalledRequests(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://hook.invalid", Events: []string{webhooks.EventRequestStalled}})
	require.NoError(t, err)
	open, err := m.CreateRequest(ctx, "t1", model.RequestIn{Destination: 3})
	require.NoError(t, err)
	closed, err := m.CreateRequest(ctx, "t1", model.RequestIn{Destination: 4})
	require.NoError(t, err)
	_, err = m.TransitionRequest(ctx, "t1", closed.ID, model.Transition{Status: model.StatusRejected})
	require.NoError(t, err)

	var stalled []string
	w := NewWorker(m, webhooks.NewPublisher(m), 24*time.Hour, time.Hour)
	w.OnStall = func(r model.SupplyRequest) { stalled = append(stalled, r.ID) }

	// nothing is a day old yet
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	w.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{open.ID}, stalled)

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, webhooks.EventRequestStalled, due[0].EventType)

	// the reminder timestamp suppresses a repeat within the window
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := m.GetRequest(ctx, "t1", open.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.LastReminderAt)
}
