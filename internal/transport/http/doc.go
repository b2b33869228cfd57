// Package http implements the HTTP handlers of the forecast server.
// Handlers stay thin: they parse the request, delegate to the services
// package and render the result.
//
// # Routes
//
// Handlers mount under /api:
//
//	GET  /api/health                              liveness summary
//	GET  /api/health/ready                        readiness (503 when not ready)
//	GET  /api/health/live                         runtime details
//	GET  /api/version                             build information
//	GET  /api/v1/parameters/default               default parameter set
//	POST /api/v1/simulations                      run a simulation
//	GET  /api/v1/simulations                      run history, newest first
//	GET  /api/v1/simulations/{id}                 one run with its summary
//	GET  /api/v1/simulations/{id}/statistics      ?columns=a,b
//	GET  /api/v1/simulations/{id}/sensitivity     ?factors=a,b&outcome=c
//	GET  /api/v1/simulations/{id}/trials.csv      raw trial table
//
// # Error Handling
//
// Every failure is rendered as RFC 7807 problem details by
// errors.ErrorHandler. Service sentinels are translated first:
//
//	services.ErrRunNotFound  -> 404
//	services.ErrInvalidRun   -> 400
//	*http.MaxBytesError      -> 413
package http
