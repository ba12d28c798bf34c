package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// ConfigLoader parses, validates and caches run configurations.
// Identical configurations, after normalisation, are validated once and
// share the cached *Config.
type ConfigLoader struct {
	// validator performs struct field validation and the custom rules
	// registered by RegisterConfigValidators.
	validator *validator.Validate
	// cache stores validated configurations indexed by the SHA256 hash of
	// their normalised YAML.
	// WARNING: Cached configurations MUST NOT be mutated.
	cache   map[string]*Config
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when several goroutines load the
	// same configuration at once.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with an empty cache.
// NewConfigLoader returns an error if validator registration fails.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()

	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*Config),
	}, nil
}

// load is the common implementation for loading configurations from bytes.
// WARNING: The returned configuration is a cached instance and MUST NOT be
// mutated.
func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, ports.NewConfigError("yaml", fmt.Errorf("failed to parse YAML: %w", err))
	}

	// Hash the normalised config, not the raw bytes.
	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.getCachedConfig(hash); ok {
			return cached, nil
		}

		if err := cl.Validate(config); err != nil {
			return nil, err
		}

		cl.cacheConfig(hash, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Config), nil
}

// LoadFromFile loads a configuration from a YAML file.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, ports.NewConfigError(cleanPath, fmt.Errorf("failed to read file: %w", err))
	}

	config, err := cl.load(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cleanPath, err)
	}
	return config, nil
}

// LoadFromReader loads a configuration from r.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(ctx, data)
}

// parseYAML decodes data on top of DefaultConfig, so omitted sections keep
// their defaults. Unknown fields are rejected to catch typos.
func (cl *ConfigLoader) parseYAML(data []byte) (*Config, error) {
	config := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// Validate performs struct and semantic validation of config.
func (cl *ConfigLoader) Validate(config *Config) error {
	if err := cl.validator.Struct(config); err != nil {
		return ports.NewConfigError("struct", fmt.Errorf("struct validation failed: %w", err))
	}

	if err := cl.validateSemantics(config); err != nil {
		return ports.NewConfigError("semantics", fmt.Errorf("semantic validation failed: %w", err))
	}

	return nil
}

// validateSemantics checks the rules struct tags cannot express and
// reports every violation at once.
func (cl *ConfigLoader) validateSemantics(config *Config) error {
	verr := domain.NewValidationError("config")

	stageTypes := slices.Sorted(maps.Keys(config.Stages))
	for _, stageType := range stageTypes {
		if err := ValidateStageParameters(stageType, config.Stages[stageType]); err != nil {
			verr.AddError(fmt.Sprintf("stage %s: %v", stageType, err))
		}
	}

	if config.Fit.Engine == "replay" && config.Fit.Recordings == "" {
		verr.AddError("fit.recordings is required for the replay engine")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// calculateConfigHash computes the SHA256 hash of the re-encoded config so
// whitespace and key order do not change it.
func (cl *ConfigLoader) calculateConfigHash(config *Config) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCachedConfig(hash string) (*Config, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	config, ok := cl.cache[hash]
	return config, ok
}

func (cl *ConfigLoader) cacheConfig(hash string, config *Config) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = config
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*Config)
}

// registerCustomValidators registers semver and the Config validators.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := RegisterConfigValidators(v); err != nil {
		return fmt.Errorf("failed to register config validators: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows X.Y.Z semantic versioning.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3
}
