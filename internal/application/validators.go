package application

import (
	"fmt"
	"slices"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/infrastructure/units"
)

// leptonFlavours lists the flavours the fit engine has resolutions for.
var leptonFlavours = []string{"electron", "muon"}

// ValidateStageParameters decodes params into the configuration of the given
// stage type and checks it with the stage's own rules.
// ValidateStageParameters returns an error for unknown stage types, naming
// the closest known type.
func ValidateStageParameters(stageType string, params yaml.Node) error {
	var cfg any
	switch stageType {
	case units.TypePrecondition:
		c := units.DefaultPreconditionConfig()
		cfg = &c
	case units.TypeFit:
		c := units.DefaultFitConfig()
		cfg = &c
	case units.TypeHypothesisBuilder:
		c := units.DefaultHypothesisBuilderConfig()
		cfg = &c
	case units.TypeRank:
		c := units.DefaultRankConfig()
		cfg = &c
	case units.TypeConvergenceFilter, units.TypeFallback:
		return nil
	default:
		return unknownStageError(stageType, StageOrder)
	}

	if params.Kind == 0 {
		return nil
	}
	if err := params.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode %s parameters: %w", stageType, err)
	}
	return units.ValidateConfig(cfg)
}

// unknownStageError reports an unknown stage type with the closest known one.
func unknownStageError(stageType string, known []string) error {
	if suggestion, ok := closestMatch(stageType, known); ok {
		return fmt.Errorf("unknown stage type %q (did you mean %q?)", stageType, suggestion)
	}
	return fmt.Errorf("unknown stage type %q", stageType)
}

// closestMatch returns the candidate nearest to s by edit distance, if it is
// close enough to be a plausible typo.
func closestMatch(s string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(s)/3) {
		return "", false
	}
	return best, true
}

// RegisterConfigValidators registers the custom validation tags used by
// Config.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := units.RegisterMaxJetsValidation(v); err != nil {
		return err
	}
	if err := v.RegisterValidation("flavour", validateFlavour); err != nil {
		return fmt.Errorf("failed to register flavour validator: %w", err)
	}
	return nil
}

// validateFlavour accepts a known lepton flavour in any letter case.
func validateFlavour(fl validator.FieldLevel) bool {
	return slices.Contains(leptonFlavours, cases.Fold().String(fl.Field().String()))
}

// NormalizeFlavour returns the case-folded lepton flavour.
func NormalizeFlavour(flavour string) string {
	return cases.Fold().String(flavour)
}
