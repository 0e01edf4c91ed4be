package config

import "strings"

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultMacrosDir   = "macros"
	DefaultSeedsDir    = "seeds"
	DefaultSourcesFile = "sources.yaml"
	DefaultAssetsFile  = "assets.yaml"
	DefaultStateFile   = ".leaprun/state.db"
	DefaultEnv         = "dev"
	DefaultOutput      = "auto" // text on a TTY, markdown otherwise
	DefaultTargetType  = "duckdb"
	DefaultThreads     = 1
	DefaultSampleSize  = 10
)

// ConfigFileName is the name of the project config file.
const ConfigFileName = "leaprun.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leaprun.yml"

// EnvPrefix prefixes environment variables. A double underscore nests:
// LEAPRUN_TARGET__TYPE sets target.type.
const EnvPrefix = "LEAPRUN_"

func defaults() map[string]any {
	return map[string]any{
		"models_dir":           DefaultModelsDir,
		"macros_dir":           DefaultMacrosDir,
		"seeds_dir":            DefaultSeedsDir,
		"sources_file":         DefaultSourcesFile,
		"assets_file":          DefaultAssetsFile,
		"state_path":           DefaultStateFile,
		"environment":          DefaultEnv,
		"threads":              DefaultThreads,
		"sample_size":          DefaultSampleSize,
		"strict_sources":       false,
		"incremental.strategy": "full_refresh",
		"verbose":              false,
		"output":               DefaultOutput,
	}
}

// Default returns the built-in value of a config key, if it has one.
func Default(key string) (any, bool) {
	v, ok := defaults()[key]
	return v, ok
}

// EnvVar returns the environment variable that sets key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// ApplyTargetDefaults fills the schema from the adapter's dialect.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
}
