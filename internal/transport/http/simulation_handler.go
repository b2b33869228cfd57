package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "forecastcli/internal/errors"
	"forecastcli/internal/services"
	"forecastcli/internal/simulation"
)

// SimulationHandler exposes the forecast service over HTTP
type SimulationHandler struct {
	service      *services.ForecastService
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	runTimeout   time.Duration
}

// NewSimulationHandler creates a simulation handler. runTimeout bounds a
// single POST /simulations request; zero disables the bound.
func NewSimulationHandler(service *services.ForecastService, errorHandler *apierrors.ErrorHandler, runTimeout time.Duration, logger *slog.Logger) *SimulationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "simulation")),
		runTimeout:   runTimeout,
	}
}

// Routes returns the simulation routes, mounted under /api/v1
func (h *SimulationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/parameters/default", h.DefaultParameters)

	r.Route("/simulations", func(r chi.Router) {
		r.Post("/", h.CreateRun)
		r.Get("/", h.ListRuns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/statistics", h.GetStatistics)
			r.Get("/sensitivity", h.GetSensitivity)
			r.Get("/trials.csv", h.DownloadTrials)
		})
	})

	return r
}

// DefaultParameters handles GET /parameters/default
func (h *SimulationHandler) DefaultParameters(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.DefaultParameters())
}

// CreateRun handles POST /simulations
func (h *SimulationHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req services.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.errorHandler.HandleError(w, r, decodeError(err))
		return
	}

	ctx := r.Context()
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	record, err := h.service.Run(ctx, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "simulation created",
		slog.String("run_id", record.ID),
		slog.Int("trials", record.Trials),
		slog.Duration("duration", record.Duration))

	w.Header().Set("Location", fmt.Sprintf("%s/%s", strings.TrimSuffix(r.URL.Path, "/"), record.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// ListRuns handles GET /simulations
func (h *SimulationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.service.List()
	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /simulations/{id}
func (h *SimulationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

// GetStatistics handles GET /simulations/{id}/statistics?columns=a,b
func (h *SimulationHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Statistics(chi.URLParam(r, "id"), splitList(r.URL.Query().Get("columns")))
	if err != nil {
		h.handleServiceError(w, r, unknownColumnParameter(err, "columns"))
		return
	}
	render.JSON(w, r, rows)
}

// GetSensitivity handles GET /simulations/{id}/sensitivity?factors=a,b&outcome=c
func (h *SimulationHandler) GetSensitivity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	outcome := strings.TrimSpace(query.Get("outcome"))
	rows, err := h.service.Sensitivity(chi.URLParam(r, "id"), splitList(query.Get("factors")), outcome)
	if err != nil {
		param := "factors"
		var colErr *simulation.UnknownColumnError
		if errors.As(err, &colErr) && colErr.Column == outcome {
			param = "outcome"
		}
		h.handleServiceError(w, r, unknownColumnParameter(err, param))
		return
	}
	render.JSON(w, r, rows)
}

// DownloadTrials handles GET /simulations/{id}/trials.csv
func (h *SimulationHandler) DownloadTrials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.Get(id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_trials.csv"))

	// Headers are already sent, so a failure here can only be logged
	if err := h.service.WriteTrialsCSV(r.Context(), id, w); err != nil {
		h.logger.ErrorContext(r.Context(), "trial download interrupted",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
	}
}

// handleServiceError maps service sentinels onto API errors
// unknownColumnParameter reports an unknown trial table column as an invalid
// value of the query parameter that named it
func unknownColumnParameter(err error, param string) error {
	var colErr *simulation.UnknownColumnError
	if errors.As(err, &colErr) {
		return apierrors.InvalidParameter(param, colErr.Error())
	}
	return err
}

func (h *SimulationHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrRunNotFound):
		err = apierrors.NotFoundError("simulation run")
	case errors.Is(err, services.ErrInvalidRun):
		err = apierrors.InvalidRequestWithError(err)
	}
	h.errorHandler.HandleError(w, r, err)
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierrors.PayloadTooLarge(maxErr.Limit)
	}
	return apierrors.InvalidRequestWithError(err)
}

// splitList parses a comma separated query value; empty yields nil
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
