package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/hitrank/infrastructure/engine"
	"github.com/ahrav/hitrank/infrastructure/middleware"
	"github.com/ahrav/hitrank/internal/application"
)

type rankOptions struct {
	configPath  string
	eventsPath  string
	outPath     string
	metricsPath string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hitrank",
		Short:         "Rank HitFit jet-parton hypotheses for semi-leptonic ttbar events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRankCmd(), newValidateCmd(), newGenerateCmd())
	return root
}

func newRankCmd() *cobra.Command {
	var opts rankOptions
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Fit and rank every event of an event file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRank(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "hitrank.yaml", "run configuration file")
	f.StringVarP(&opts.eventsPath, "events", "e", "", "event file (YAML or JSON list)")
	f.StringVarP(&opts.outPath, "out", "o", "-", "report file, - for stdout")
	f.StringVar(&opts.metricsPath, "metrics-out", "", "write Prometheus metrics in text format to this file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log every event")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run configuration and build its stages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := application.NewConfigLoader()
			if err != nil {
				return err
			}
			cfg, err := loader.LoadFromFile(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			// An empty replay engine is enough to build and check the stages.
			if _, err := application.NewProducer(cfg, application.NewDefaultUnitRegistry(),
				engine.NewReplayEngine(engine.NewCatalogue(), cfg.Fit.Settings())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration %q (version %s) is valid\n",
				configPath, cfg.Metadata.Name, cfg.Version)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "hitrank.yaml", "run configuration file")
	return cmd
}

func runRank(cmd *cobra.Command, opts rankOptions) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	loader, err := application.NewConfigLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.LoadFromFile(ctx, opts.configPath)
	if err != nil {
		return err
	}

	catalogue, err := loadCatalogue(recordingsPath(opts.configPath, cfg.Fit.Recordings))
	if err != nil {
		return err
	}

	events, err := readEvents(opts.eventsPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(registry)
	observer := middleware.NewOTelStageObserver(metrics)

	settings := cfg.Fit.Settings()
	engines := engine.WithMiddleware(engine.Factory(catalogue, settings),
		engine.MetricsMiddleware(metrics),
		engine.TimeoutMiddleware(cfg.Fit.Timeout),
	)
	runner := application.NewBatchRunner(cfg, application.NewDefaultUnitRegistry(), engines, logger,
		application.WithMetrics(metrics),
		application.WithUnitDecorator(middleware.Decorator(observer)),
	)

	logger.Info("ranking events",
		zap.String("config", cfg.Metadata.Name),
		zap.Int("events", len(events)),
		zap.Int("recordings", catalogue.Len()),
		zap.Float64("w_mass", settings.WMass),
		zap.Float64("top_mass", settings.TopMass),
		zap.String("lepton_flavour", settings.LeptonFlavour),
	)

	results, err := runner.Run(ctx, events)
	if err != nil {
		return err
	}

	summary, err := application.Summarize(results)
	if err != nil {
		return err
	}
	logger.Info("batch complete",
		zap.Int("ranked", summary.Ranked),
		zap.Int("fallbacks", summary.Events-summary.Ranked),
		zap.Int("hypotheses", summary.Hypotheses),
	)

	if err := writeReport(cmd.OutOrStdout(), opts.outPath, newReport(cfg, results, summary)); err != nil {
		return err
	}
	if opts.metricsPath != "" {
		return writeMetrics(registry, opts.metricsPath)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// recordingsPath resolves a relative recordings path against the directory
// of the configuration file.
func recordingsPath(configPath, recordings string) string {
	if recordings == "" || filepath.IsAbs(recordings) {
		return recordings
	}
	return filepath.Join(filepath.Dir(configPath), recordings)
}

func loadCatalogue(path string) (*engine.Catalogue, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open recordings: %w", err)
	}
	defer f.Close()

	catalogue, err := engine.LoadCatalogue(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalogue, nil
}
