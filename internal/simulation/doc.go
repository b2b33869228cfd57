// Package simulation implements the monthly revenue and ROI Monte Carlo engine.
//
// A run draws N independent trials of one business month. Every factor of the
// model is declared as a closed range in a Parameters set and sampled with one
// of three strategies (uniform, uniform-integer, bounded normal). Five stream
// simulators compose those draws into revenue and cost populations, a market
// adjustment scales the combined revenue, and the aggregator folds everything
// into a TrialTable with one row per trial.
//
// # Components
//
//   - parameters.go: Range, Parameters, default calibration and validation
//   - sampler.go: seeded draw strategies producing populations of length N
//   - population.go: element-wise arithmetic over populations
//   - streams.go: subscription, API, project, licensing and cost simulators
//   - market.go: seasonality, growth, efficiency and sport-impact composite
//   - aggregate.go / table.go: outcome columns and the immutable TrialTable
//   - statistics.go / sensitivity.go: summary statistics and factor ranking
//   - engine.go: orchestration, last-result state and telemetry
//
// # Determinism
//
// Each stream owns a sampler seeded from the run seed and a fixed stream
// identifier. Streams are built concurrently, but no generator is shared, so
// a given (parameters, trials, seed) triple always yields a bit-identical
// table.
//
// # Usage Example
//
//	table, err := simulation.Run(ctx, simulation.DefaultParameters(), 10000, 42)
//	if err != nil {
//	    return err
//	}
//
//	stats, err := simulation.Statistics(table, nil)
//	if err != nil {
//	    return err
//	}
//
//	ranking, err := simulation.Sensitivity(table, nil, simulation.ColMonthlyValue)
package simulation
