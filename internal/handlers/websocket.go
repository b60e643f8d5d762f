package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is served from the same host
	},
}

// WSMessage is the envelope pushed to every websocket client
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler fans core events out to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clock            common.Clock
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	statusThrottler  *rate.Limiter   // Limits running-status broadcasts; nil = disabled
	allowedEvents    map[string]bool // Empty = allow all
	serverInstanceID string
}

func NewWebSocketHandler(eventService interfaces.EventService, clk common.Clock, config common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clock:            clk,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		serverInstanceID: uuid.New().String(),
	}

	for _, eventType := range config.AllowedEvents {
		h.allowedEvents[eventType] = true
	}

	if config.ThrottleInterval != "" {
		if d, err := time.ParseDuration(config.ThrottleInterval); err == nil && d > 0 {
			h.statusThrottler = rate.NewLimiter(rate.Every(d), 1)
		} else {
			logger.Warn().
				Str("interval", config.ThrottleInterval).
				Msg("Invalid websocket throttle interval - throttler disabled")
		}
	}

	if eventService != nil {
		h.subscribe()
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("allowed_events", len(h.allowedEvents)).
		Msg("WebSocket handler initialized")

	return h
}

func (h *WebSocketHandler) subscribe() {
	for _, eventType := range interfaces.AllEventTypes {
		if len(h.allowedEvents) > 0 && !h.allowedEvents[string(eventType)] {
			continue
		}
		if err := h.eventService.Subscribe(eventType, h.onEvent); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket handler")
		}
	}
}

func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) error {
	if h.throttled(event) {
		return nil
	}
	h.Broadcast(WSMessage{Type: string(event.Type), Payload: event.Payload})
	return nil
}

// throttled drops running-status updates over the configured rate. Terminal
// transitions always go out.
func (h *WebSocketHandler) throttled(event interfaces.Event) bool {
	if h.statusThrottler == nil || event.Type != interfaces.EventJobStatusChanged {
		return false
	}
	payload, ok := event.Payload.(map[string]interface{})
	if !ok || payload["status"] != string(models.JobStatusRunning) {
		return false
	}
	return !h.statusThrottler.AllowN(h.clock.Now(), 1)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	hello, _ := json.Marshal(WSMessage{Type: "hello", Payload: map[string]string{
		"server_instance_id": h.serverInstanceID,
		"version":            common.GetVersion(),
	}})
	mutex.Lock()
	conn.WriteMessage(websocket.TextMessage, hello)
	mutex.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// Broadcast sends msg to all connected clients
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send message to client")
		}
	}
}
