package application

import (
	"maps"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// Config is the complete run configuration and the primary entry point for
// building a Producer.
type Config struct {
	// Version specifies the configuration schema version using semantic
	// versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the run.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Ranking controls how many jets are fitted and how many hypotheses are
	// emitted per event.
	Ranking RankingConfig `yaml:"ranking"`
	// Fit is handed to the fit engine and never interpreted by the ranking
	// stages.
	Fit FitConfig `yaml:"fit"`
	// Batch controls parallel processing of event files.
	Batch BatchConfig `yaml:"batch"`
	// Stages holds optional per-stage parameters keyed by stage type. They
	// are applied on top of the Ranking settings.
	Stages map[string]yaml.Node `yaml:"stages,omitempty"`
}

// Metadata provides descriptive information about a configuration.
type Metadata struct {
	// Name is the human-readable identifier for this configuration.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains the purpose of the configuration.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels for grouping configurations.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// RankingConfig holds the ranking bounds.
type RankingConfig struct {
	// MaxJets is the number of leading jets handed to the engine; -1 means
	// every jet.
	MaxJets int `yaml:"max_jets" validate:"maxjets"`
	// MaxHypotheses bounds the emitted hypotheses; zero or negative means
	// unbounded.
	MaxHypotheses int `yaml:"max_hypotheses"`
	// UnmappedTagPolicy decides whether unknown jet tags are ignored or make
	// the permutation malformed.
	UnmappedTagPolicy domain.UnmappedTagPolicy `yaml:"unmapped_tag_policy" validate:"omitempty,oneof=ignore reject"`
}

// FitConfig is the fit engine configuration. Mass constraints and
// resolution files are passed through to the engine untouched.
type FitConfig struct {
	// Engine selects the engine implementation.
	Engine string `yaml:"engine" validate:"omitempty,oneof=replay"`
	// Recordings is the catalogue file served by the replay engine.
	Recordings string `yaml:"recordings"`
	// WMass is the W boson mass constraint in GeV.
	WMass float64 `yaml:"w_mass" validate:"omitempty,gt=0"`
	// TopMass is the top quark mass constraint in GeV; zero leaves the top
	// mass free.
	TopMass float64 `yaml:"top_mass" validate:"omitempty,gte=0"`
	// LeptonFlavour is electron or muon.
	LeptonFlavour string `yaml:"lepton_flavour" validate:"omitempty,flavour"`
	// Resolutions maps object kinds to resolution file paths.
	Resolutions map[string]string `yaml:"resolutions" validate:"max=16"`
	// Timeout bounds the fit of one event; zero means no bound.
	Timeout time.Duration `yaml:"timeout" validate:"min=0s"`
}

// Settings returns the engine settings with the lepton flavour normalised.
func (f FitConfig) Settings() ports.FitSettings {
	return ports.FitSettings{
		WMass:         f.WMass,
		TopMass:       f.TopMass,
		LeptonFlavour: NormalizeFlavour(f.LeptonFlavour),
		Resolutions:   maps.Clone(f.Resolutions),
	}
}

// BatchConfig controls parallel event processing.
type BatchConfig struct {
	// Workers is the number of events fitted in parallel, each with its own
	// engine. Zero uses one worker per CPU.
	Workers int `yaml:"workers" validate:"min=0,max=256"`
	// EventsPerSecond throttles the batch; zero disables the throttle.
	EventsPerSecond float64 `yaml:"events_per_second" validate:"min=0"`
}

// DefaultConfig returns a configuration that fits every jet, emits every
// converged hypothesis and ignores unmapped tags.
func DefaultConfig() Config {
	return Config{
		Version:  "1.0.0",
		Metadata: Metadata{Name: "default"},
		Ranking: RankingConfig{
			MaxJets:           -1,
			MaxHypotheses:     0,
			UnmappedTagPolicy: domain.UnmappedIgnore,
		},
		Fit: FitConfig{
			Engine:        "replay",
			WMass:         80.4,
			TopMass:       0,
			LeptonFlavour: "muon",
		},
	}
}
