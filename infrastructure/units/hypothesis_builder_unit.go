package units

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*HypothesisBuilderUnit)(nil)

// HypothesisBuilderUnit turns each permutation returned by the fit engine
// into a Hypothesis, mapping jet type tags onto parton roles. Permutations
// that do not assign every role to exactly one distinct jet are dropped and
// counted as malformed.
type HypothesisBuilderUnit struct {
	name   string
	config HypothesisBuilderConfig
}

// HypothesisBuilderConfig defines the configuration parameters for the
// HypothesisBuilderUnit.
type HypothesisBuilderConfig struct {
	// UnmappedTagPolicy decides what a jet tag outside the role tags and
	// the unassigned tag does to its permutation.
	UnmappedTagPolicy domain.UnmappedTagPolicy `yaml:"unmapped_tag_policy" json:"unmapped_tag_policy" validate:"required,oneof=ignore reject"`
}

// DefaultHypothesisBuilderConfig returns a config that ignores unmapped tags.
func DefaultHypothesisBuilderConfig() HypothesisBuilderConfig {
	return HypothesisBuilderConfig{UnmappedTagPolicy: domain.UnmappedIgnore}
}

// NewHypothesisBuilderUnit creates a new HypothesisBuilderUnit.
func NewHypothesisBuilderUnit(name string, config HypothesisBuilderConfig) (*HypothesisBuilderUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &HypothesisBuilderUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (hb *HypothesisBuilderUnit) Name() string { return hb.name }

// MapRoles assigns each parton role the index of the fitted jet carrying its
// tag. The returned quadruple starts fully unassigned, so a role left
// without a jet stays at -1 and the permutation is reported malformed.
func (hb *HypothesisBuilderUnit) MapRoles(jets []domain.FittedJet, jetCount int) (domain.JetIndices, error) {
	indices := domain.InvalidJetIndices()
	for i, jet := range jets {
		role, ok := domain.RoleFromTag(jet.Type)
		if !ok {
			if jet.Type != domain.TagUnassigned && hb.config.UnmappedTagPolicy == domain.UnmappedReject {
				return indices, fmt.Errorf("%w: jet %d: %w (tag %d)",
					domain.ErrMalformedPermutation, i, domain.ErrUnmappedTag, jet.Type)
			}
			continue
		}
		if indices[role] != -1 {
			return indices, fmt.Errorf("%w: role %s assigned to jets %d and %d",
				domain.ErrMalformedPermutation, role, indices[role], i)
		}
		indices[role] = i
	}

	if !indices.Complete(jetCount) {
		return indices, fmt.Errorf("%w: jet indices %v incomplete for %d jets",
			domain.ErrMalformedPermutation, indices, jetCount)
	}
	return indices, nil
}

// Build assembles the hypothesis for one permutation. jetCount is the number
// of jets handed to the engine.
func (hb *HypothesisBuilderUnit) Build(result domain.FitResult, jetCount int) (domain.Hypothesis, error) {
	indices, err := hb.MapRoles(result.Jets, jetCount)
	if err != nil {
		return domain.Hypothesis{}, err
	}

	return domain.Hypothesis{
		Status:       domain.StatusValid,
		FitCost:      result.Chi2,
		Probability:  domain.FitProbability(result.Chi2),
		TopMass:      result.TopMass,
		TopMassSigma: result.TopMassSigma,
		LightQ:       result.Jets[indices[domain.RoleLightQ]].P4,
		LightQBar:    result.Jets[indices[domain.RoleLightQBar]].P4,
		HadB:         result.Jets[indices[domain.RoleHadB]].P4,
		LepB:         result.Jets[indices[domain.RoleLepB]].P4,
		Lepton:       result.Lepton,
		Neutrino:     result.MET,
		JetIndices:   indices,
		Permutation:  result.Permutation,
	}, nil
}

// Execute builds a candidate hypothesis for every well-formed permutation.
func (hb *HypothesisBuilderUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	if domain.FallbackReasonOf(state) != domain.FallbackNone {
		return state, nil
	}

	results, ok := domain.Get(state, domain.KeyFitResults)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", hb.name, domain.MissingKey(domain.KeyFitResults))
	}
	jetCount, ok := domain.Get(state, domain.KeyJetCount)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", hb.name, domain.MissingKey(domain.KeyJetCount))
	}

	stats := domain.PermutationStats{Total: len(results)}
	candidates := make([]domain.Hypothesis, 0, len(results))
	for _, result := range results {
		h, err := hb.Build(result, jetCount)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedPermutation) {
				stats.Malformed++
				continue
			}
			return state, fmt.Errorf("unit %s: %w", hb.name, err)
		}
		candidates = append(candidates, h)
	}

	state = domain.With(state, domain.KeyPermutationStats, stats)
	return domain.With(state, domain.KeyCandidates, candidates), nil
}

// Validate checks if the unit is properly configured and ready for execution.
func (hb *HypothesisBuilderUnit) Validate() error {
	if err := validate.Struct(hb.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes and validates YAML parameters into the unit's
// configuration. Omitted fields keep their current values.
func (hb *HypothesisBuilderUnit) UnmarshalParameters(params yaml.Node) error {
	config := hb.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	hb.config = config
	return nil
}

// CreateHypothesisBuilderUnit is a factory function that creates a
// HypothesisBuilderUnit from a configuration map.
func CreateHypothesisBuilderUnit(id string, config map[string]any) (*HypothesisBuilderUnit, error) {
	cfg := DefaultHypothesisBuilderConfig()
	if policy, ok := config["unmapped_tag_policy"].(string); ok {
		cfg.UnmappedTagPolicy = domain.UnmappedTagPolicy(policy)
	}
	return NewHypothesisBuilderUnit(id, cfg)
}
