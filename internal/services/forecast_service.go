package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"forecastcli/internal/infrastructure"
	"forecastcli/internal/config"
	"forecastcli/internal/exporter"
	"forecastcli/internal/simulation"
)

// Event types sent through the Notifier
const (
	EventRunStarted   = "simulation_started"
	EventRunCompleted = "simulation_completed"
	EventRunFailed    = "simulation_failed"
)

// Notifier receives run lifecycle events
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// RunRequest describes one simulation run. Zero trials and a nil seed fall
// back to the configured defaults. Parameters is a partial parameter set
// decoded over the service defaults.
type RunRequest struct {
	Trials     int             `json:"trials" validate:"gte=0"`
	Seed       *uint64         `json:"seed,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// RunRecord is one completed simulation kept in the history
type RunRecord struct {
	ID         string                             `json:"id"`
	CreatedAt  time.Time                          `json:"created_at"`
	Duration   time.Duration                      `json:"duration_ns"`
	Trials     int                                `json:"trials"`
	Seed       uint64                             `json:"seed"`
	Parameters simulation.Parameters              `json:"parameters"`
	Summary    []simulation.SummaryRow            `json:"summary"`
	Warnings   []simulation.NonFiniteTrialWarning `json:"warnings,omitempty"`

	table *simulation.TrialTable
}

// Table returns the run's trial table
func (r *RunRecord) Table() *simulation.TrialTable {
	return r.table
}

// RunSummary is the history listing view of a run
type RunSummary struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Trials           int       `json:"trials"`
	Seed             uint64    `json:"seed"`
	MeanMonthlyValue *float64  `json:"mean_monthly_value"`
	Warnings         int       `json:"warnings"`
}

// ForecastService runs simulations and keeps the most recent runs
type ForecastService struct {
	cfg        config.SimulationConfig
	defaults   simulation.Parameters
	notifier   Notifier
	logger     *slog.Logger
	engineOpts []simulation.Option
	validate   *validator.Validate

	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string // oldest first
}

// NewForecastService creates the service. When cfg.ParametersFile is set the
// file replaces the built-in default parameters. notifier may be nil.
func NewForecastService(cfg config.SimulationConfig, notifier Notifier, logger *slog.Logger, opts ...simulation.Option) (*ForecastService, error) {
	logger = infrastructure.WithComponent(logger, "forecast_service")

	defaults := simulation.DefaultParameters()
	if cfg.ParametersFile != "" {
		loaded, err := simulation.LoadParameters(cfg.ParametersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load default parameters: %w", err)
		}
		defaults = loaded
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 1
	}

	logger.Info("ForecastService initialized",
		slog.Int("default_trials", cfg.DefaultTrials),
		slog.Int("max_trials", cfg.MaxTrials),
		slog.Int("history_size", cfg.HistorySize),
		slog.String("parameters_file", cfg.ParametersFile))

	return &ForecastService{
		cfg:        cfg,
		defaults:   defaults,
		notifier:   notifier,
		logger:     logger,
		engineOpts: append([]simulation.Option{simulation.WithLogger(logger)}, opts...),
		validate:   validator.New(),
		runs:       make(map[string]*RunRecord),
	}, nil
}

// DefaultParameters returns a copy of the parameters runs start from
func (s *ForecastService) DefaultParameters() simulation.Parameters {
	p := s.defaults
	p.SportImpacts = slices.Clone(s.defaults.SportImpacts)
	return p
}

// Run executes a simulation and stores it in the history
func (s *ForecastService) Run(ctx context.Context, req RunRequest) (*RunRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	trials := req.Trials
	if trials == 0 {
		trials = s.cfg.DefaultTrials
	}
	if trials > s.cfg.MaxTrials {
		return nil, &simulation.ConfigurationError{
			Parameter: "trials",
			Reason:    fmt.Sprintf("must be at most %d, got %d", s.cfg.MaxTrials, trials),
		}
	}

	seed := s.cfg.DefaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}

	params := s.DefaultParameters()
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &params); err != nil {
			return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidRun, err)
		}
	}

	engine, err := simulation.NewEngine(params, trials, seed, s.engineOpts...)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s.notify(EventRunStarted, map[string]interface{}{
		"id":     id,
		"trials": trials,
		"seed":   seed,
	})

	start := time.Now()
	table, err := engine.Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Simulation failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
		s.notify(EventRunFailed, map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		return nil, err
	}

	summary, err := simulation.Statistics(table, nil)
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}

	record := &RunRecord{
		ID:         id,
		CreatedAt:  start.UTC(),
		Duration:   time.Since(start),
		Trials:     trials,
		Seed:       seed,
		Parameters: params,
		Summary:    summary,
		Warnings:   table.Warnings(),
		table:      table,
	}
	s.store(record)

	s.logger.InfoContext(ctx, "Simulation stored",
		slog.String("run_id", id),
		slog.Int("trials", trials),
		slog.Duration("duration", record.Duration))

	s.notify(EventRunCompleted, record.summary())
	return record, nil
}

// store appends the record and evicts the oldest runs beyond the history size
func (s *ForecastService) store(record *RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.ID] = record
	s.order = append(s.order, record.ID)
	for len(s.order) > s.cfg.HistorySize {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

// List returns the stored runs, newest first
func (s *ForecastService) List() []RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.order[i]].summary())
	}
	return out
}

// Get returns a stored run
func (s *ForecastService) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return record, nil
}

// Statistics summarizes columns of a stored run
func (s *ForecastService) Statistics(id string, columns []string) ([]simulation.SummaryRow, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return simulation.Statistics(record.table, columns)
}

// Sensitivity ranks factors of a stored run against outcome
func (s *ForecastService) Sensitivity(id string, factors []string, outcome string) ([]simulation.SensitivityRow, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return simulation.Sensitivity(record.table, factors, outcome)
}

// WriteTrialsCSV streams a stored run's trial table as CSV
func (s *ForecastService) WriteTrialsCSV(ctx context.Context, id string, w io.Writer) error {
	record, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := exporter.WriteTrialTableTo(w, record.table); err != nil {
		s.logger.ErrorContext(ctx, "Trial export failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *ForecastService) notify(eventType string, data interface{}) {
	if s.notifier != nil {
		s.notifier.Broadcast(eventType, data)
	}
}

func (r *RunRecord) summary() RunSummary {
	out := RunSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Trials:    r.Trials,
		Seed:      r.Seed,
		Warnings:  len(r.Warnings),
	}
	for _, row := range r.Summary {
		if row.Metric == simulation.ColMonthlyValue && row.Valid > 0 {
			mean := row.Mean
			out.MeanMonthlyValue = &mean
		}
	}
	return out
}
