// Package websocket pushes simulation lifecycle events to browser clients.
//
// A Hub owns the connected clients and fans each event out to them through
// per-client buffered queues; clients that cannot keep up are disconnected
// rather than slowing the hub down. Handler performs the HTTP upgrade.
// Events are JSON objects of the form
//
//	{"type": "simulation_completed", "data": {...}, "timestamp": "..."}
package websocket
