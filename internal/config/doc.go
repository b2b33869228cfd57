// Package config loads the forecast configuration.
//
// # Configuration Sources
//
// Values are layered in increasing order of precedence:
//
//	1. Built-in defaults (Default)
//	2. An optional YAML file
//	3. Environment variables
//
// The YAML file is taken from FORECAST_CONFIG_FILE, or the first of
// forecast.yaml and configs/forecast.yaml that exists.
//
// # Environment Variables
//
// Every variable uses the FORECAST prefix followed by the section and field:
//
//	FORECAST_SERVER_PORT=8080
//	FORECAST_LOGGING_LEVEL=debug
//	FORECAST_SIMULATION_DEFAULT_TRIALS=10000
//	FORECAST_SIMULATION_PARAMETERS_FILE=params.yaml
//	FORECAST_SECURITY_ALLOWED_ORIGINS=http://localhost:3000,http://localhost:8080
//	FORECAST_TELEMETRY_ENABLE_TRACING=true
//
// # Validation
//
// The merged configuration is validated with struct tags before Load
// returns, so callers never see a partially valid Config.
package config
