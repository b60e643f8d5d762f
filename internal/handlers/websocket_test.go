package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/services/events"
)

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketHandler_BroadcastsEvents(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	defer eventService.Close()

	h := NewWebSocketHandler(eventService, clock.NewMock(), common.WebSocketConfig{}, logger)
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "hello", readMessage(t, conn).Type)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventHealthSweepDone,
		Payload: map[string]interface{}{"unhealthy": 0},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, string(interfaces.EventHealthSweepDone), msg.Type)
}

func TestWebSocketHandler_AllowedEvents(t *testing.T) {
	logger := arbor.NewLogger()
	sub := &recordingEvents{}
	NewWebSocketHandler(sub, clock.NewMock(), common.WebSocketConfig{AllowedEvents: []string{"job_status_changed"}}, logger)
	assert.Equal(t, []interfaces.EventType{interfaces.EventJobStatusChanged}, sub.subscribed)
}

func TestWebSocketHandler_ThrottlesRunningStatus(t *testing.T) {
	mock := clock.NewMock()
	h := NewWebSocketHandler(nil, mock, common.WebSocketConfig{ThrottleInterval: "1s"}, arbor.NewLogger())

	running := interfaces.Event{Type: interfaces.EventJobStatusChanged, Payload: map[string]interface{}{"status": "running"}}
	completed := interfaces.Event{Type: interfaces.EventJobStatusChanged, Payload: map[string]interface{}{"status": "completed"}}

	assert.False(t, h.throttled(running))
	assert.True(t, h.throttled(running))
	assert.False(t, h.throttled(completed), "terminal transitions are never dropped")
	assert.False(t, h.throttled(interfaces.Event{Type: interfaces.EventPurgeDone}))

	mock.Add(time.Second)
	assert.False(t, h.throttled(running))
}

type recordingEvents struct {
	subscribed []interfaces.EventType
}

func (r *recordingEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	r.subscribed = append(r.subscribed, eventType)
	return nil
}

func (r *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error     { return nil }
func (r *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error { return nil }
func (r *recordingEvents) Close() error                                                 { return nil }
