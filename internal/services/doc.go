// Package services holds the application layer between the HTTP transport
// and the simulation engine.
//
// ForecastService validates run requests, runs the engine, keeps a bounded
// in-memory history of completed runs and answers statistics, sensitivity
// and trial export queries against that history. Completed runs are
// announced through a Notifier, which the server backs with the WebSocket
// hub.
//
// HealthService reports liveness, readiness and version information.
//
// Services take their logger by injection and log with the *Context
// methods so request trace IDs follow each call.
package services
