// Package engine runs a set of models in dependency order.
// It renders declarative models, calls procedural transforms, materializes
// each output and records the outcome of every model in a RunContext.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leaprun/internal/assets"
	"github.com/leapstack-labs/leaprun/internal/macro"
	"github.com/leapstack-labs/leaprun/internal/materialize"
	starctx "github.com/leapstack-labs/leaprun/internal/starlark"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Engine executes models against a connected adapter.
type Engine struct {
	db      adapter.Adapter
	dialect *adapter.Dialect
	mat     *materialize.Materializer
	logger  *slog.Logger

	schema        string
	database      string
	environment   string
	sources       core.SourceRegistry
	assets        *assets.Catalog
	macros        *macro.Registry
	threads       int
	modelTimeout  time.Duration
	incremental   core.IncrementalStrategy
	strictSources bool
	stageDir      string
}

// Config holds engine configuration.
type Config struct {
	// Adapter is a connected database adapter (required)
	Adapter adapter.Adapter
	// Schema models are written to; defaults to the dialect's default schema
	Schema string
	// Database is exposed to templates as target.database
	Database string
	// Environment is exposed to templates as env (default "dev")
	Environment string
	// Sources resolves source() calls
	Sources core.SourceRegistry
	// Assets resolves asset() calls
	Assets *assets.Catalog
	// Macros are user macro namespaces available to templates
	Macros *macro.Registry
	// Threads bounds how many models of one level run at once. Zero or one
	// runs strictly sequentially.
	Threads int
	// ModelTimeout limits each model; zero means no limit
	ModelTimeout time.Duration
	// Incremental is the run-wide strategy for incremental models
	Incremental core.IncrementalStrategy
	// StrictSources fails source() calls for unregistered sources instead of
	// falling back to the bare table name
	StrictSources bool
	// SampleSize is the number of rows read back per model. Zero uses the
	// default; negative disables the read-back.
	SampleSize int
	// StageDir holds staged asset files; a temporary directory when empty
	StageDir string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("engine requires an adapter")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := cfg.Adapter.Dialect()
	schema := cfg.Schema
	if schema == "" {
		schema = d.DefaultSchema
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	incremental := cfg.Incremental
	if incremental == "" {
		incremental = core.IncrementalFullRefresh
	}

	sampleSize := cfg.SampleSize
	if sampleSize == 0 {
		sampleSize = materialize.DefaultSampleSize
	}

	macros := cfg.Macros
	if macros == nil {
		macros = macro.NewRegistry()
	}

	logger.Debug("initializing engine", "dialect", d.Name, "schema", schema, "environment", env, "threads", cfg.Threads)

	return &Engine{
		db:            cfg.Adapter,
		dialect:       d,
		mat:           materialize.New(cfg.Adapter, logger, materialize.WithSampleSize(sampleSize)),
		logger:        logger,
		schema:        schema,
		database:      cfg.Database,
		environment:   env,
		sources:       cfg.Sources,
		assets:        cfg.Assets,
		macros:        macros,
		threads:       cfg.Threads,
		modelTimeout:  cfg.ModelTimeout,
		incremental:   incremental,
		strictSources: cfg.StrictSources,
		stageDir:      cfg.StageDir,
	}, nil
}

// Schema returns the schema models are written to.
func (e *Engine) Schema() string { return e.schema }

// Dialect returns the SQL dialect of the connected adapter.
func (e *Engine) Dialect() *adapter.Dialect { return e.dialect }

func (e *Engine) target() *starctx.TargetInfo {
	return &starctx.TargetInfo{Type: e.dialect.Name, Schema: e.schema, Database: e.database}
}
