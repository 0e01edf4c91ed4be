package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flag names whose config key differs from the
// snake_cased flag name.
var flagKeys = map[string]string{
	"state":       "state_path",
	"env":         "environment",
	"timeout":     "model_timeout",
	"incremental": "incremental.strategy",
	"target-type": "target.type",
	"database":    "target.database",
	"schema":      "target.schema",
}

// pathFlags are flags holding paths; when set they are relative to the
// working directory, not the project root.
var pathFlags = map[string]bool{
	"models-dir":   true,
	"macros-dir":   true,
	"seeds-dir":    true,
	"sources-file": true,
	"assets-file":  true,
	"state":        true,
}

// Options controls Load.
type Options struct {
	// File is an explicit config file; otherwise leaprun.yaml is searched
	// upward from WorkDir
	File string
	// Flags are command line flags; only flags that were set override
	Flags *pflag.FlagSet
	// WorkDir defaults to the current directory
	WorkDir string
	// Environ overrides os.Environ for tests
	Environ []string
}

// Loaded is a loaded configuration and where it came from.
type Loaded struct {
	*Config
	// File is the config file used, empty if none
	File string
}

// Load builds the configuration. Precedence, highest first: flags,
// environment variables, config file, defaults.
func Load(opts Options) (*Loaded, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cfgFile := opts.File
	projectRoot := workDir
	if cfgFile != "" {
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}
		projectRoot = filepath.Dir(cfgFile)
	} else if root := FindProjectRoot(workDir); root != "" {
		projectRoot = root
		cfgFile = findConfigFile(root)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(envProvider(opts.Environ), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	flagPaths := map[string]string{}
	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if pathFlags[f.Name] {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	applyEnvironment(&cfg)
	ApplyTargetDefaults(ensureTarget(&cfg))
	expandTargetEnvVars(cfg.Target)
	resolvePaths(&cfg, workDir, flagPaths)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, File: cfgFile}, nil
}

func envProvider(environ []string) koanf.Provider {
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}
	if environ == nil {
		return env.Provider(EnvPrefix, ".", transform)
	}
	m := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		m[transform(name)] = value
	}
	return confmap.Provider(m, ".")
}

func ensureTarget(cfg *Config) *TargetConfig {
	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	return cfg.Target
}

// applyEnvironment overlays the block under environments.<environment>.
func applyEnvironment(cfg *Config) {
	envCfg, ok := cfg.Environments[cfg.Environment]
	if !ok {
		return
	}
	if envCfg.ModelsDir != "" {
		cfg.ModelsDir = envCfg.ModelsDir
	}
	if envCfg.SeedsDir != "" {
		cfg.SeedsDir = envCfg.SeedsDir
	}
	if envCfg.MacrosDir != "" {
		cfg.MacrosDir = envCfg.MacrosDir
	}
	if envCfg.Threads != 0 {
		cfg.Threads = envCfg.Threads
	}
	if envCfg.Target != nil {
		cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
	}
}

func resolvePaths(cfg *Config, workDir string, fromFlags map[string]string) {
	resolve := func(key string, p *string) {
		if _, ok := fromFlags[key]; ok {
			*p = resolvePathRelativeTo(*p, workDir)
			return
		}
		*p = resolvePathRelativeTo(*p, cfg.ProjectRoot)
	}
	resolve("models_dir", &cfg.ModelsDir)
	resolve("macros_dir", &cfg.MacrosDir)
	resolve("seeds_dir", &cfg.SeedsDir)
	resolve("sources_file", &cfg.SourcesFile)
	resolve("assets_file", &cfg.AssetsFile)
	resolve("state_path", &cfg.StatePath)

	t := cfg.Target
	if (t.Type == "duckdb" || t.Type == "sqlite") && t.Database != "" && t.Database != ":memory:" {
		t.Database = resolvePathRelativeTo(t.Database, cfg.ProjectRoot)
	}
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// findConfigFile returns the config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindProjectRoot searches upward from startDir for a leaprun config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// DefaultSchemaForType returns the default schema of a registered
// adapter's dialect, or "main" when the type is unknown.
func DefaultSchemaForType(dbType string) string {
	if f, ok := adapter.Get(strings.ToLower(dbType)); ok {
		if s := f(nil).Dialect().DefaultSchema; s != "" {
			return s
		}
	}
	return "main"
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns; unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = maps.Clone(base.Options)
	merged.Params = maps.Clone(base.Params)
	if merged.Options == nil {
		merged.Options = make(map[string]string)
	}
	if merged.Params == nil {
		merged.Params = make(map[string]any)
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	maps.Copy(merged.Options, override.Options)
	maps.Copy(merged.Params, override.Params)
	return &merged
}
