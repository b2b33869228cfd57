package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// hubMetrics holds the OpenTelemetry instruments of a hub
type hubMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	droppedClients     metric.Int64Counter
}

func newHubMetrics(meter metric.Meter) (*hubMetrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesSent, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Total number of messages queued to clients"),
	)
	if err != nil {
		return nil, err
	}

	droppedClients, err := meter.Int64Counter(
		"websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &hubMetrics{
		connectionsTotal:   connectionsTotal,
		connectionsActive:  connectionsActive,
		connectionDuration: connectionDuration,
		messagesSent:       messagesSent,
		droppedClients:     droppedClients,
	}, nil
}

func (m *hubMetrics) recordConnect(ctx context.Context) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *hubMetrics) recordDisconnect(ctx context.Context, connected time.Duration, reason string) {
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, connected.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *hubMetrics) recordBroadcast(ctx context.Context, messageType string, delivered, dropped int) {
	attrs := metric.WithAttributes(attribute.String("message_type", messageType))
	m.messagesSent.Add(ctx, int64(delivered), attrs)
	if dropped > 0 {
		m.droppedClients.Add(ctx, int64(dropped), attrs)
	}
}
