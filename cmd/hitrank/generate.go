package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/infrastructure/engine"
	"github.com/ahrav/hitrank/internal/application"
	"github.com/ahrav/hitrank/internal/ports"
)

func newGenerateCmd() *cobra.Command {
	opts := engine.DefaultSyntheticOptions()
	var configPath, eventsPath, recordingsPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic event file and the recordings to replay it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Events < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			settings, err := fitSettings(cmd, configPath)
			if err != nil {
				return err
			}
			opts.Settings = settings

			events, recordings := engine.GenerateSynthetic(opts)
			if err := writeYAMLFile(eventsPath, events); err != nil {
				return err
			}
			if err := writeYAMLFile(recordingsPath, recordings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s and %d recordings to %s\n",
				len(events), eventsPath, len(recordings), recordingsPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "run configuration whose fit settings the recordings are made with")
	f.IntVarP(&opts.Events, "count", "n", opts.Events, "number of events")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.IntVar(&opts.FittedJets, "fitted-jets", opts.FittedJets, "leading jets the recorded permutations use")
	f.Float64Var(&opts.NonConverged, "non-converged", opts.NonConverged, "fraction of failed fits")
	f.Float64Var(&opts.ShortEvents, "short-events", opts.ShortEvents, "fraction of events with three jets")
	f.StringVar(&eventsPath, "events-out", "events.yaml", "event file to write")
	f.StringVar(&recordingsPath, "recordings-out", "recordings.yaml", "recordings file to write")
	return cmd
}

// fitSettings returns the fit settings of the configuration at path, or the
// default settings when path is empty.
func fitSettings(cmd *cobra.Command, path string) (ports.FitSettings, error) {
	if path == "" {
		return application.DefaultConfig().Fit.Settings(), nil
	}
	loader, err := application.NewConfigLoader()
	if err != nil {
		return ports.FitSettings{}, err
	}
	cfg, err := loader.LoadFromFile(cmd.Context(), path)
	if err != nil {
		return ports.FitSettings{}, err
	}
	return cfg.Fit.Settings(), nil
}

func writeYAMLFile(path string, v any) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return enc.Close()
}
