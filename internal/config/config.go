// Package config loads the optional forge.yaml project configuration file
// (spec §7 "optional forge.yaml config"), grounded on the teacher's YAML
// loader and go-playground/validator usage for declarative config.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the subset of project settings that can be pinned outside the
// build script itself: worker pool size, the build-hooks library, and the
// log level for the structured event sink.
type Config struct {
	MaximumParallelJobs int    `yaml:"maximum_parallel_jobs" validate:"gte=0"`
	BuildHooksLibrary   string `yaml:"build_hooks_library"`
	LogLevel            string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no forge.yaml is present.
func Default() Config {
	return Config{
		MaximumParallelJobs: 4,
		LogLevel:            "info",
	}
}

var validate = validator.New()

// Load reads and validates path. A missing file is not an error: Default
// is returned instead, since forge.yaml is optional (spec §7).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}
