// Package app wires the forecast server together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. The caller loads configuration and initializes the logger
//	2. OpenTelemetry providers are created from the telemetry config
//	3. The WebSocket hub, forecast service and health service are built
//	4. The chi router is assembled with middleware and handlers
//	5. The HTTP server is created from the server config
//
// # Usage
//
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM or context cancellation once in-flight
// requests have drained, WebSocket clients are closed and telemetry has been
// flushed. The package never calls os.Exit.
package app
