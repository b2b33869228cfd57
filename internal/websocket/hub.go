package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Message types sent by the hub itself
const (
	TypeConnection = "connection"
)

const (
	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
	broadcastBuffer   = 256
)

// Message is the JSON envelope of every event sent to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type envelope struct {
	messageType string
	payload     []byte
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithMeter records hub instruments on meter instead of the global meter
func WithMeter(meter metric.Meter) HubOption {
	return func(h *Hub) {
		h.meter = meter
	}
}

// WithKeepalive sets the ping period and pong deadline of client connections.
// pingPeriod must be shorter than pongWait.
func WithKeepalive(pingPeriod, pongWait time.Duration) HubOption {
	return func(h *Hub) {
		h.pingPeriod = pingPeriod
		h.pongWait = pongWait
	}
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger
	// baseLogger is the caller's logger before the hub component tag
	baseLogger *slog.Logger

	meter   metric.Meter
	metrics *hubMetrics

	pingPeriod time.Duration
	pongWait   time.Duration

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewHub creates a new Hub. Call Start before registering clients.
func NewHub(logger *slog.Logger, opts ...HubOption) (*Hub, error) {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		baseLogger: logger,
		meter:      otel.Meter("forecastcli/websocket"),
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.pingPeriod >= h.pongWait {
		return nil, fmt.Errorf("ping period %s must be shorter than pong wait %s", h.pingPeriod, h.pongWait)
	}

	metrics, err := newHubMetrics(h.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	h.metrics = metrics

	return h, nil
}

// Start runs the hub loop in a new goroutine. Later calls do nothing.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		h.started.Store(true)
		go h.run()
	})
}

// Stop disconnects every client and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	if h.started.Load() {
		<-h.done
	}
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.metrics.recordDisconnect(ctx, time.Since(client.connectedAt), "shutdown")
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.recordConnect(ctx)
			h.logger.InfoContext(client.context(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			welcome, err := encode(TypeConnection, map[string]interface{}{
				"status":    "connected",
				"client_id": client.id,
			})
			if err == nil {
				select {
				case client.send <- welcome:
				default:
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.metrics.recordDisconnect(ctx, time.Since(client.connectedAt), "closed")
				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case msg := <-h.broadcast:
			h.deliver(ctx, msg)
		}
	}
}

// deliver queues msg on every client. Clients with a full buffer are dropped.
func (h *Hub) deliver(ctx context.Context, msg envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered, dropped := 0, 0
	for client := range h.clients {
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			close(client.send)
			delete(h.clients, client)
			dropped++
			h.metrics.recordDisconnect(ctx, time.Since(client.connectedAt), "slow_consumer")
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.metrics.recordBroadcast(ctx, msg.messageType, delivered, dropped)
	h.logger.Debug("Broadcast delivered",
		slog.String("type", msg.messageType),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

// Broadcast sends an event to every connected client. It never blocks: when
// the hub is stopped or its queue is full the event is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := encode(messageType, data)
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- envelope{messageType: messageType, payload: payload}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.String("message_type", messageType))
	}
}

// Register adds a client to the hub. After Stop the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.conn.Close()
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(messageType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
