// Package units provides the per-event processing stages that implement
// the ports.Unit interface: precondition check, fit, hypothesis building,
// convergence filtering, ranking and fallback.
package units

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/hitrank/internal/domain"
)

// Unit type names used by the registry and in configuration.
const (
	TypePrecondition      = "precondition"
	TypeFit               = "fit"
	TypeHypothesisBuilder = "hypothesis_builder"
	TypeConvergenceFilter = "convergence_filter"
	TypeRank              = "rank"
	TypeFallback          = "fallback"
)

// MaxJetsAll tells the fit unit to hand every jet of the event to the engine.
const MaxJetsAll = -1

// Common errors returned by the stage units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilEngine is returned when a fit unit is created without an engine.
	ErrNilEngine = errors.New("fit engine cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterMaxJetsValidation(v); err != nil {
		panic(fmt.Sprintf("units: %v", err))
	}
	return v
}

// ValidMaxJets reports whether n is MaxJetsAll or a count that can still
// fill the four parton roles.
func ValidMaxJets(n int) bool {
	return n == MaxJetsAll || n >= domain.NumRoles
}

// RegisterMaxJetsValidation registers the "maxjets" tag, backed by
// ValidMaxJets, on v.
func RegisterMaxJetsValidation(v *validator.Validate) error {
	err := v.RegisterValidation("maxjets", func(fl validator.FieldLevel) bool {
		return ValidMaxJets(int(fl.Field().Int()))
	})
	if err != nil {
		return fmt.Errorf("failed to register maxjets validator: %w", err)
	}
	return nil
}

// intParam reads an integer parameter from a loosely typed config map,
// accepting the numeric types YAML and JSON decoders produce.
func intParam(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ValidateConfig checks a stage configuration struct with the same rules
// the stage constructors apply.
func ValidateConfig(config any) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
