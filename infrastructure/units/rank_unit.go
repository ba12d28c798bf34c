package units

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var (
	_ ports.Unit    = (*RankUnit)(nil)
	_ domain.Ranker = (*RankUnit)(nil)
)

// RankUnit orders hypotheses by ascending fit cost and keeps at most
// MaxHypotheses of them. Equal costs keep the engine's permutation order.
type RankUnit struct {
	name   string
	config RankConfig
}

// RankConfig defines the configuration parameters for the RankUnit.
type RankConfig struct {
	// MaxHypotheses bounds the number of emitted hypotheses. Zero or a
	// negative value emits every converged hypothesis.
	MaxHypotheses int `yaml:"max_hypotheses" json:"max_hypotheses"`
}

// DefaultRankConfig returns an unbounded RankConfig.
func DefaultRankConfig() RankConfig {
	return RankConfig{MaxHypotheses: 0}
}

// NewRankUnit creates a new RankUnit.
func NewRankUnit(name string, config RankConfig) (*RankUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &RankUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (ru *RankUnit) Name() string { return ru.name }

// Rank implements domain.Ranker. The input slice is left untouched.
func (ru *RankUnit) Rank(hypotheses []domain.Hypothesis) []domain.Hypothesis {
	ranked := slices.Clone(hypotheses)
	slices.SortStableFunc(ranked, func(a, b domain.Hypothesis) int {
		return cmp.Compare(a.FitCost, b.FitCost)
	})

	if ru.config.MaxHypotheses > 0 && len(ranked) > ru.config.MaxHypotheses {
		ranked = ranked[:ru.config.MaxHypotheses]
	}
	if ranked == nil {
		ranked = []domain.Hypothesis{}
	}
	return ranked
}

// Execute ranks the filtered candidates into the emitted hypotheses.
func (ru *RankUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	if domain.FallbackReasonOf(state) != domain.FallbackNone {
		return state, nil
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", ru.name, domain.MissingKey(domain.KeyCandidates))
	}

	return domain.With(state, domain.KeyHypotheses, ru.Rank(candidates)), nil
}

// Validate always succeeds; every MaxHypotheses value is meaningful.
func (ru *RankUnit) Validate() error { return nil }

// UnmarshalParameters decodes YAML parameters into the unit's configuration.
func (ru *RankUnit) UnmarshalParameters(params yaml.Node) error {
	config := ru.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	ru.config = config
	return nil
}

// CreateRankUnit is a factory function that creates a RankUnit from a
// configuration map.
func CreateRankUnit(id string, config map[string]any) (*RankUnit, error) {
	cfg := DefaultRankConfig()
	if n, ok := intParam(config, "max_hypotheses"); ok {
		cfg.MaxHypotheses = n
	}
	return NewRankUnit(id, cfg)
}
