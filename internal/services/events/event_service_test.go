package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
)

func TestService_PublishSyncDeliversToAllHandlers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	var calls int32

	for i := 0; i < 3; i++ {
		require.NoError(t, service.Subscribe(interfaces.EventJobStatusChanged, func(ctx context.Context, event interfaces.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}))
	}

	err := service.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStatusChanged,
		Payload: map[string]interface{}{"job_id": "j1", "status": "running"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestService_PublishSyncReportsFailuresAndPanics(t *testing.T) {
	service := NewService(arbor.NewLogger())

	require.NoError(t, service.Subscribe(interfaces.EventPurgeDone, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler failed")
	}))
	require.NoError(t, service.Subscribe(interfaces.EventPurgeDone, func(ctx context.Context, event interfaces.Event) error {
		panic("boom")
	}))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventPurgeDone})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors")
}

func TestService_PublishIsAsynchronous(t *testing.T) {
	service := NewService(arbor.NewLogger())
	received := make(chan interfaces.Event, 1)

	require.NoError(t, service.Subscribe(interfaces.EventTriggerFired, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventTriggerFired, Payload: "event_scout_cron"}))

	select {
	case event := <-received:
		assert.Equal(t, "event_scout_cron", event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestService_SubscribeRejectsNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.Error(t, service.Subscribe(interfaces.EventHealingDone, nil))
	assert.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventHealingDone}))
}
