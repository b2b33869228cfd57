package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"forecastcli/internal/config"
	apierrors "forecastcli/internal/errors"
	"forecastcli/internal/infrastructure"
	customMiddleware "forecastcli/internal/middleware"
	"forecastcli/internal/services"
	"forecastcli/internal/simulation"
	handlers "forecastcli/internal/transport/http"
	ws "forecastcli/internal/websocket"
)

const AppName = "Forecast Server"

var (
	// Version is set at build time with -ldflags "-X forecastcli/internal/app.Version=..."
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = time.Now().Format(time.RFC3339)
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	Forecasts     *services.ForecastService
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
}

// NewApplication wires every component from cfg. The caller owns logger
// initialization so that command line overrides apply before startup.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("build_time", BuildTime))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	hub, err := ws.NewHub(a.Logger,
		ws.WithMeter(a.OTelProviders.Meter),
		ws.WithKeepalive(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait))
	if err != nil {
		return fmt.Errorf("failed to create websocket hub: %w", err)
	}
	a.WebSocketHub = hub

	forecasts, err := services.NewForecastService(a.Config.Simulation, hub, a.Logger,
		simulation.WithTracer(a.OTelProviders.Tracer),
		simulation.WithMeter(a.OTelProviders.Meter))
	if err != nil {
		return fmt.Errorf("failed to initialize forecast service: %w", err)
	}
	a.Forecasts = forecasts

	a.HealthService = services.NewHealthService(Version, forecasts, hub, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	security := a.Config.Security

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: security.AllowedOrigins,
		}))
		if security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				security.RateLimit.RPS,
				security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		r.Method(http.MethodGet, "/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))
		r.Method(http.MethodGet, "/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, security.AllowedOrigins, a.Logger))

		a.setupAPIRoutes(r)
	})

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.BodyLimit(a.Config.Security.MaxBodyBytes, a.ErrorHandler))
		r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))

		handlers.NewHealthHandler(a.HealthService, a.Logger).RegisterRoutes(r)

		simulationHandler := handlers.NewSimulationHandler(a.Forecasts, a.ErrorHandler, a.Config.Server.RunTimeout, a.Logger)
		r.Mount("/v1", simulationHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Router,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		IdleTimeout:       a.Config.Server.IdleTimeout,
		MaxHeaderBytes:    a.Config.Server.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Start starts the hub and begins serving in the background
func (a *Application) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.serveErr = make(chan error, 1)
	a.mu.Unlock()

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", listener.Addr().String()),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("metrics", a.OTelProviders.PrometheusHTTP != nil))
	return nil
}

// Addr returns the bound listen address, or "" before Start
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or the server
// fails, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received shutdown signal")
	case err, ok := <-a.serveErr:
		if ok {
			serveErr = err
		}
	}

	// ctx is done at this point; shutdown gets its own deadline
	if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}
