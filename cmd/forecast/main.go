package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"forecastcli/internal/config"
	"forecastcli/internal/exporter"
	"forecastcli/internal/infrastructure"
	"forecastcli/internal/simulation"
	"forecastcli/internal/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("Forecast failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// options holds the parsed command line
type options struct {
	trials     int
	seed       uint64
	paramsFile string
	outDir     string
	excel      bool
	logLevel   string
	noFiles    bool
}

func parseFlags(args []string, stderr io.Writer) (*config.Config, options, error) {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.String("config", "", "YAML config file (defaults to FORECAST_CONFIG_FILE or ./forecast.yaml)")
	trials := fs.Int("trials", 0, "number of Monte Carlo trials (defaults to simulation.default_trials)")
	seed := fs.Uint64("seed", 0, "random seed (defaults to simulation.default_seed)")
	paramsFile := fs.String("params", "", "YAML parameter set applied over the built-in defaults")
	outDir := fs.String("out", "", "output directory for the report bundle (defaults to output.dir)")
	excel := fs.Bool("excel", false, "also write an Excel workbook")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	noFiles := fs.Bool("no-files", false, "print tables only, skip the report bundle")

	if err := fs.Parse(args); err != nil {
		return nil, options{}, err
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, options{}, err
	}

	opts := options{
		trials:     cfg.Simulation.DefaultTrials,
		seed:       cfg.Simulation.DefaultSeed,
		paramsFile: *paramsFile,
		outDir:     cfg.Output.Dir,
		excel:      cfg.Output.Excel,
		logLevel:   cfg.Logging.Level,
		noFiles:    *noFiles,
	}

	// Explicit flags win over configuration
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "trials":
			opts.trials = *trials
		case "seed":
			opts.seed = *seed
		case "out":
			opts.outDir = *outDir
		case "excel":
			opts.excel = *excel
		case "log-level":
			opts.logLevel = *logLevel
		}
	})

	if opts.trials < 1 {
		return nil, options{}, &simulation.ConfigurationError{Parameter: "trials", Reason: "must be at least 1"}
	}

	return cfg, opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging
	logCfg.Level = opts.logLevel
	logger, err := infrastructure.NewLogger(logCfg, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()
	slog.SetDefault(logger)
	ctx = infrastructure.EnsureTraceID(ctx)

	validator := validation.NewFileValidator(logger)
	params := simulation.DefaultParameters()
	if opts.paramsFile != "" {
		if err := validator.ValidateParametersFile(opts.paramsFile); err != nil {
			return err
		}
		if params, err = simulation.LoadParameters(opts.paramsFile); err != nil {
			return err
		}
	}
	if !opts.noFiles {
		if err := validator.ValidateOutputDirectory(opts.outDir); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "Starting forecast",
		slog.Int("trials", opts.trials),
		slog.Uint64("seed", opts.seed),
		slog.String("params", opts.paramsFile),
		slog.String("out", opts.outDir),
		slog.Bool("excel", opts.excel))

	table, err := simulation.Run(ctx, params, opts.trials, opts.seed, simulation.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	stats, err := simulation.Statistics(table, nil)
	if err != nil {
		return err
	}

	ranking, err := simulation.Sensitivity(table, nil, "")
	if err != nil {
		var corrErr *simulation.UndefinedCorrelationError
		if !errors.As(err, &corrErr) {
			return err
		}
		// a constant factor or outcome leaves nothing to rank
		logger.WarnContext(ctx, "Sensitivity analysis skipped", slog.String("error", err.Error()))
		ranking = nil
	}

	fmt.Fprintf(stdout, "Monte Carlo forecast: %d trials, seed %d\n\n", table.Trials(), table.Seed())
	if err := exporter.PrintStatistics(stdout, stats); err != nil {
		return err
	}
	if len(ranking) > 0 {
		fmt.Fprintln(stdout)
		if err := exporter.PrintSensitivity(stdout, ranking); err != nil {
			return err
		}
	}
	for _, w := range table.Warnings() {
		fmt.Fprintf(stdout, "\nwarning: %s\n", w)
	}

	if opts.noFiles {
		return nil
	}

	bundle, err := exporter.WriteBundle(ctx, exporter.BundleOptions{
		Dir:    opts.outDir,
		Excel:  opts.excel,
		Logger: logger,
	}, table, stats, ranking)
	if err != nil {
		return fmt.Errorf("failed to write report bundle: %w", err)
	}

	fmt.Fprintln(stdout, "\nFiles written:")
	for _, path := range bundle.Paths() {
		fmt.Fprintf(stdout, "  %s\n", path)
	}
	return nil
}
