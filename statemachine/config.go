package statemachine

import (
	"bytes"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/amp-labs/amp-hfsm/errors"
	"gopkg.in/yaml.v3"
)

// Config holds engine settings loaded from YAML. Behaviors are always supplied in code;
// the hierarchy section describes string-keyed machines for validation and diagrams.
type Config struct {
	Name          string          `json:"name"          yaml:"name"`
	MaxChainDepth int             `json:"maxChainDepth" yaml:"maxChainDepth"` // 0 means DefaultMaxChainDepth
	EventTimeout  string          `json:"eventTimeout"  yaml:"eventTimeout"`  // time.ParseDuration syntax, empty for none
	TransitionLog bool            `json:"transitionLog" yaml:"transitionLog"`
	Metrics       *bool           `json:"metrics"       yaml:"metrics"`
	Tracing       *bool           `json:"tracing"       yaml:"tracing"`
	Hierarchy     HierarchyConfig `json:"hierarchy"     yaml:"hierarchy"`
}

// HierarchyConfig lists states and their parents by name.
type HierarchyConfig struct {
	States  []string          `json:"states"  yaml:"states"`
	Parents map[string]string `json:"parents" yaml:"parents"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromFS loads a configuration from a filesystem such as an embed.FS.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates YAML. Unknown keys are rejected.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs errors.Collection

	if c.MaxChainDepth < 0 {
		errs.Add(fmt.Errorf("%w: maxChainDepth must not be negative, got %d", ErrInvalidConfig, c.MaxChainDepth))
	}

	if _, err := c.eventTimeout(); err != nil {
		errs.Add(err)
	}

	declared := make(map[string]bool, len(c.Hierarchy.States))

	for _, state := range c.Hierarchy.States {
		if state == "" {
			errs.Add(fmt.Errorf("%w: empty state name", ErrInvalidConfig))

			continue
		}

		if declared[state] {
			errs.Add(fmt.Errorf("%w: duplicate state %q", ErrInvalidConfig, state))
		}

		declared[state] = true
	}

	for child := range c.Hierarchy.Parents {
		if !declared[child] {
			errs.Add(fmt.Errorf("%w: parent declared for unknown state %q", ErrInvalidConfig, child))
		}
	}

	return errs.GetError()
}

// Options converts the engine settings into engine options.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []Option

	if c.MaxChainDepth > 0 {
		opts = append(opts, WithMaxChainDepth(c.MaxChainDepth))
	}

	timeout, _ := c.eventTimeout()
	if timeout > 0 {
		opts = append(opts, WithEventTimeout(timeout))
	}

	if c.TransitionLog {
		opts = append(opts, WithTransitionLog(true))
	}

	if c.Metrics != nil {
		opts = append(opts, WithMetrics(*c.Metrics))
	}

	if c.Tracing != nil {
		opts = append(opts, WithTracing(*c.Tracing))
	}

	return opts, nil
}

func (c *Config) eventTimeout() (time.Duration, error) {
	if c.EventTimeout == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.EventTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: eventTimeout: %w", ErrInvalidConfig, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: eventTimeout must not be negative, got %s", ErrInvalidConfig, d)
	}

	return d, nil
}

// ToHierarchy converts the hierarchy section for the validator and the visualizer.
// Parents naming undeclared states are kept so that validation can report them.
func (h HierarchyConfig) ToHierarchy() Hierarchy[string] {
	return Hierarchy[string]{
		States:  slices.Clone(h.States),
		Parents: maps.Clone(h.Parents),
	}
}
