package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/assets"
	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/config"
	"github.com/leapstack-labs/leaprun/internal/engine"
	"github.com/leapstack-labs/leaprun/internal/loader"
	"github.com/leapstack-labs/leaprun/internal/state"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
)

type configKey struct{}

type loggerKey struct{}

// WithConfig stores the loaded configuration in ctx.
func WithConfig(ctx context.Context, cfg *config.Loaded) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger from ctx, or a discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	File     string
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the config loaded by the
// root command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	loaded, ok := cmd.Context().Value(configKey{}).(*config.Loaded)
	if !ok || loaded == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return &CommandContext{
		Cfg:      loaded.Config,
		File:     loaded.File,
		Logger:   GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(loaded.OutputFormat)),
	}, nil
}

// LoadProject reads models, macros, sources and assets.
func (c *CommandContext) LoadProject() (*loader.Project, error) {
	if _, err := os.Stat(c.Cfg.ModelsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.Cfg.ModelsDir)
	}
	project, err := loader.Load(loader.Options{
		ModelsDir:   c.Cfg.ModelsDir,
		MacrosDir:   c.Cfg.MacrosDir,
		SourcesFile: c.Cfg.SourcesFile,
		AssetsFile:  c.Cfg.AssetsFile,
		Env:         c.Cfg.Environment,
		Logger:      c.Logger,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range project.Diagnostics {
		c.Logger.Warn("template diagnostic", "diagnostic", d.String())
	}
	return project, nil
}

// OpenAdapter connects to the configured target.
func (c *CommandContext) OpenAdapter(ctx context.Context) (adapter.Adapter, error) {
	acfg := c.Cfg.Target.AdapterConfig()
	if acfg.Path != "" && acfg.Path != ":memory:" {
		if err := ensureParentDir(acfg.Path); err != nil {
			return nil, err
		}
	}
	return adapter.Open(ctx, acfg, c.Logger)
}

// NewEngine builds an engine over a connected adapter and a loaded project.
func (c *CommandContext) NewEngine(db adapter.Adapter, project *loader.Project) (*engine.Engine, error) {
	fetcher, err := c.fetcher()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Adapter:       db,
		Schema:        c.Cfg.Target.Schema,
		Database:      c.Cfg.Target.Database,
		Environment:   c.Cfg.Environment,
		Sources:       project.Sources,
		Assets:        assets.NewCatalog(project.Assets, fetcher),
		Macros:        project.Macros,
		Threads:       c.Cfg.Threads,
		ModelTimeout:  c.Cfg.ModelTimeout,
		Incremental:   c.Cfg.Incremental.Strategy,
		StrictSources: c.Cfg.StrictSources,
		SampleSize:    c.Cfg.SampleSize,
		Logger:        c.Logger,
	})
}

func (c *CommandContext) fetcher() (assets.Fetcher, error) {
	router := &assets.Router{Local: &assets.LocalFetcher{BaseDir: c.Cfg.ProjectRoot}}
	if c.Cfg.ObjectStore.Endpoint != "" {
		s3, err := assets.NewS3Fetcher(c.Cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		router.Object = s3
	}
	return router, nil
}

// OpenStore opens the run history database, creating its directory.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, error) {
	if err := ensureParentDir(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(ctx, c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return store, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
