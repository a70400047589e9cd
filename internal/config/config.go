// Package config loads runtime settings for hosts of the Ela core.
//
// Settings come from ela.yaml (or ela.toml) found next to the program or in
// a parent directory:
//
//	runtime:
//	  max_call_depth: 4096
//	  max_stack: 1048576
//	format:
//	  max_string_length: 200
//	  max_elements: 100
//	log:
//	  level: info
//	  file: ela.log
//	workers: 8
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/ela/internal/object"
	"github.com/funvibe/ela/internal/vm"
)

// Config is the top-level configuration file.
type Config struct {
	Runtime RuntimeConfig      `yaml:"runtime" toml:"runtime"`
	Format  object.ShowOptions `yaml:"format" toml:"format"`
	Log     LogConfig          `yaml:"log" toml:"log"`

	// Workers bounds the number of goroutines evaluating units in parallel.
	Workers int `yaml:"workers" toml:"workers"`
}

// RuntimeConfig limits a single worker.
type RuntimeConfig struct {
	// MaxCallDepth is the deepest call stack before StackOverflow.
	MaxCallDepth int `yaml:"max_call_depth" toml:"max_call_depth"`

	// MaxStack is the largest operand stack before StackOverflow.
	MaxStack int `yaml:"max_stack" toml:"max_stack"`
}

// LogConfig selects where diagnostics logs go.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`

	// File, when set, receives JSON records in addition to the terminal.
	File string `yaml:"file" toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses configuration content. The format is picked by the
// extension of path: .toml is TOML, everything else is YAML.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for a configuration file starting from dir and
// walking up to parent directories. It returns the empty string and nil
// error when there is none.
func FindConfig(dir string) (string, error) {
	if env := os.Getenv(EnvConfig); env != "" {
		return env, nil
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// Resolve loads the configuration for a program in dir, falling back to
// Default when no file exists.
func Resolve(dir string) (*Config, string, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Runtime.MaxCallDepth < 0 {
		return fmt.Errorf("%s: runtime.max_call_depth must not be negative", path)
	}
	if c.Runtime.MaxStack < 0 {
		return fmt.Errorf("%s: runtime.max_stack must not be negative", path)
	}
	if c.Format.MaxStringLength < 0 || c.Format.MaxElements < 0 || c.Format.MaxDepth < 0 {
		return fmt.Errorf("%s: format limits must not be negative", path)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative", path)
	}
	levels := []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
	if c.Log.Level != "" && !slices.Contains(levels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("%s: log.level %q is not one of %s", path, c.Log.Level, strings.Join(levels, ", "))
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Runtime.MaxCallDepth == 0 {
		c.Runtime.MaxCallDepth = vm.DefaultMaxCallDepth
	}
	if c.Runtime.MaxStack == 0 {
		c.Runtime.MaxStack = vm.DefaultMaxStack
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// VMOptions returns the worker options described by the configuration.
func (c *Config) VMOptions(logger *slog.Logger) vm.Options {
	return vm.Options{
		MaxCallDepth: c.Runtime.MaxCallDepth,
		MaxStack:     c.Runtime.MaxStack,
		Show:         c.Format,
		Logger:       logger,
	}
}

// SlogLevel converts the configured level name.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelWarn
}
