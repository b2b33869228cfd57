package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// InstrumentationName identifies the engine's tracer and meter
const InstrumentationName = "forecastcli/simulation"

// Stream identifiers. Each stream draws from its own generator seeded with
// (seed, stream), so the order in which streams finish never changes a value.
const (
	streamSubscription uint64 = iota + 1
	streamAPI
	streamProject
	streamLicensing
	streamCosts
	streamMarket
)

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for run instruments
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		if meter != nil {
			e.meter = meter
		}
	}
}

// Engine runs the Monte Carlo model for one parameter set and keeps the most
// recent trial table for statistics and sensitivity queries.
type Engine struct {
	params Parameters
	trials int
	seed   uint64

	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	runsTotal      metric.Int64Counter
	trialsTotal    metric.Int64Counter
	nonFiniteTotal metric.Int64Counter
	runDuration    metric.Float64Histogram

	mu      sync.RWMutex
	results *TrialTable
}

// NewEngine validates params and returns an engine ready to run.
// trials must be at least one.
func NewEngine(params Parameters, trials int, seed uint64, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if trials < 1 {
		return nil, configErrorf("trials", "must be at least 1, got %d", trials)
	}

	e := &Engine{
		params: params,
		trials: trials,
		seed:   seed,
		logger: slog.Default(),
		tracer: otel.Tracer(InstrumentationName),
		meter:  otel.Meter(InstrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to create simulation instruments: %w", err)
	}
	return e, nil
}

func (e *Engine) initInstruments() error {
	var err error

	e.runsTotal, err = e.meter.Int64Counter(
		"simulation_runs_total",
		metric.WithDescription("Total number of completed simulation runs"),
	)
	if err != nil {
		return err
	}

	e.trialsTotal, err = e.meter.Int64Counter(
		"simulation_trials_total",
		metric.WithDescription("Total number of simulated trials"),
	)
	if err != nil {
		return err
	}

	e.nonFiniteTotal, err = e.meter.Int64Counter(
		"simulation_non_finite_values_total",
		metric.WithDescription("Total number of non-finite trial values by column"),
	)
	if err != nil {
		return err
	}

	e.runDuration, err = e.meter.Float64Histogram(
		"simulation_run_duration_seconds",
		metric.WithDescription("Simulation run duration in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

// Parameters returns the parameter set the engine was built with
func (e *Engine) Parameters() Parameters {
	return e.params
}

// Trials returns the configured trial count
func (e *Engine) Trials() int {
	return e.trials
}

// Seed returns the configured seed
func (e *Engine) Seed() uint64 {
	return e.seed
}

// Run simulates every trial and stores the resulting table, replacing any
// earlier result. Calling Run again with the same engine produces a
// bit-identical table.
func (e *Engine) Run(ctx context.Context) (*TrialTable, error) {
	ctx, span := e.tracer.Start(ctx, "simulation.Run",
		trace.WithAttributes(
			attribute.Int("simulation.trials", e.trials),
			attribute.Int64("simulation.seed", int64(e.seed)),
		))
	defer span.End()

	start := time.Now()
	e.logger.InfoContext(ctx, "Starting simulation run",
		slog.Int("trials", e.trials),
		slog.Uint64("seed", e.seed))

	streams, err := e.simulateStreams(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "Simulation run failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to simulate streams: %w", err)
	}

	table := Aggregate(streams, e.trials, e.seed)

	e.mu.Lock()
	e.results = table
	e.mu.Unlock()

	duration := time.Since(start)
	e.runsTotal.Add(ctx, 1)
	e.trialsTotal.Add(ctx, int64(e.trials))
	e.runDuration.Record(ctx, duration.Seconds())

	for _, w := range table.Warnings() {
		e.nonFiniteTotal.Add(ctx, int64(w.Count), metric.WithAttributes(attribute.String("column", w.Column)))
		e.logger.WarnContext(ctx, "Non-finite trial values excluded from statistics",
			slog.String("column", w.Column),
			slog.Int("count", w.Count))
	}

	span.SetAttributes(attribute.Int("simulation.warnings", len(table.Warnings())))
	span.SetStatus(codes.Ok, "")

	e.logger.InfoContext(ctx, "Simulation run complete",
		slog.Int("trials", e.trials),
		slog.Int("columns", len(table.Columns())),
		slog.Duration("duration", duration))

	return table, nil
}

// simulateStreams builds all stream populations concurrently. Each goroutine
// writes only its own field of the result.
func (e *Engine) simulateStreams(ctx context.Context) (StreamResults, error) {
	var r StreamResults
	g, ctx := errgroup.WithContext(ctx)

	run := func(stream uint64, fn func(*Sampler)) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(NewSampler(e.seed, stream, e.trials))
			return nil
		})
	}

	run(streamSubscription, func(s *Sampler) { r.Subscription = SimulateSubscription(s, e.params) })
	run(streamAPI, func(s *Sampler) { r.API = SimulateAPI(s, e.params) })
	run(streamProject, func(s *Sampler) { r.Projects = SimulateProjects(s, e.params) })
	run(streamLicensing, func(s *Sampler) { r.Licensing = SimulateLicensing(s, e.params) })
	run(streamCosts, func(s *Sampler) { r.Costs = SimulateCosts(s, e.params) })
	run(streamMarket, func(s *Sampler) { r.Market = SimulateMarket(s, e.params) })

	if err := g.Wait(); err != nil {
		return StreamResults{}, err
	}
	return r, nil
}

// Results returns the table of the most recent run
func (e *Engine) Results() (*TrialTable, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.results == nil {
		return nil, &EngineStateError{Operation: "results"}
	}
	return e.results, nil
}

// GenerateStatistics summarizes columns of the most recent run. Nil columns
// select DefaultStatisticsColumns.
func (e *Engine) GenerateStatistics(columns []string) ([]SummaryRow, error) {
	table, err := e.Results()
	if err != nil {
		return nil, &EngineStateError{Operation: "statistics"}
	}
	return Statistics(table, columns)
}

// SensitivityAnalysis ranks factor columns of the most recent run against
// outcome
func (e *Engine) SensitivityAnalysis(factors []string, outcome string) ([]SensitivityRow, error) {
	table, err := e.Results()
	if err != nil {
		return nil, &EngineStateError{Operation: "sensitivity analysis"}
	}
	return Sensitivity(table, factors, outcome)
}

// Run validates params, simulates the given number of trials and returns the
// trial table. It is the one-shot form of NewEngine followed by Engine.Run.
func Run(ctx context.Context, params Parameters, trials int, seed uint64, opts ...Option) (*TrialTable, error) {
	engine, err := NewEngine(params, trials, seed, opts...)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}
