package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/application"
	"github.com/ahrav/hitrank/internal/domain"
)

// report is the JSON document written by the rank command.
type report struct {
	Config  string              `json:"config"`
	Version string              `json:"version"`
	Events  []eventReport       `json:"events"`
	Summary application.Summary `json:"summary"`
}

type eventReport struct {
	EventID        string                  `json:"event_id"`
	ExecutionID    string                  `json:"execution_id"`
	Outcome        domain.Phase            `json:"outcome"`
	FallbackReason domain.FallbackReason   `json:"fallback_reason,omitempty"`
	Permutations   domain.PermutationStats `json:"permutations"`
	Hypotheses     domain.Columns          `json:"hypotheses"`
	Error          string                  `json:"error,omitempty"`
}

func newReport(cfg *application.Config, results []domain.EventResult, summary application.Summary) report {
	r := report{
		Config:  cfg.Metadata.Name,
		Version: cfg.Version,
		Events:  make([]eventReport, len(results)),
		Summary: summary,
	}
	for i, res := range results {
		r.Events[i] = eventReport{
			EventID:        res.EventID,
			ExecutionID:    res.ExecutionID,
			Outcome:        res.Outcome,
			FallbackReason: res.FallbackReason,
			Permutations:   res.Permutations,
			Hypotheses:     res.Columns(),
			Error:          res.Error,
		}
	}
	return r
}

// readEvents decodes a YAML or JSON list of events. Events without an ID
// are given a random one.
func readEvents(path string) ([]domain.Event, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	if err := yaml.NewDecoder(f).Decode(&events); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode events %s: %w", path, err)
	}
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
	}
	return events, nil
}

func writeReport(stdout io.Writer, path string, r report) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// writeMetrics dumps every metric family of g in the Prometheus text format.
func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
