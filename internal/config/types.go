// Package config loads leaprun project configuration.
//
// Values are layered with koanf: built-in defaults, then leaprun.yaml,
// then LEAPRUN_* environment variables, then command line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leaprun/internal/assets"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Config holds all project configuration.
type Config struct {
	// ProjectRoot anchors relative paths; set by Load
	ProjectRoot string `koanf:"-"`

	ModelsDir   string `koanf:"models_dir"`
	MacrosDir   string `koanf:"macros_dir"`
	SeedsDir    string `koanf:"seeds_dir"`
	SourcesFile string `koanf:"sources_file"`
	AssetsFile  string `koanf:"assets_file"`
	StatePath   string `koanf:"state_path"`
	Environment string `koanf:"environment"`

	Threads       int               `koanf:"threads"`
	ModelTimeout  time.Duration     `koanf:"model_timeout"`
	SampleSize    int               `koanf:"sample_size"`
	StrictSources bool              `koanf:"strict_sources"`
	Incremental   IncrementalConfig `koanf:"incremental"`

	Target      *TargetConfig            `koanf:"target"`
	ObjectStore assets.ObjectStoreConfig `koanf:"object_store"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Environments map[string]EnvConfig `koanf:"environments"`
}

// IncrementalConfig selects how incremental models are built.
type IncrementalConfig struct {
	Strategy core.IncrementalStrategy `koanf:"strategy"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	ModelsDir string        `koanf:"models_dir"`
	SeedsDir  string        `koanf:"seeds_dir"`
	MacrosDir string        `koanf:"macros_dir"`
	Threads   int           `koanf:"threads"`
	Target    *TargetConfig `koanf:"target"`
}

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, sqlite

	// Database is the file path for file-based databases or the database
	// name for servers
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// AdapterConfig converts the target to an adapter.Config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	if cfg.Type == "duckdb" || cfg.Type == "sqlite" {
		cfg.Path = t.Database
	}
	return cfg
}

// Validate checks the target against the registered adapters.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}
	if c.ModelTimeout < 0 {
		return fmt.Errorf("model_timeout must not be negative, got %s", c.ModelTimeout)
	}
	if _, err := core.ParseIncrementalStrategy(string(c.Incremental.Strategy)); err != nil {
		return err
	}
	if c.Target == nil {
		return fmt.Errorf("target is required")
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return nil
}
