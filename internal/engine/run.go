package engine

// run.go - Execution orchestration for running models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/leapstack-labs/leaprun/internal/dag"
	"github.com/leapstack-labs/leaprun/internal/materialize"
	starctx "github.com/leapstack-labs/leaprun/internal/starlark"
	"github.com/leapstack-labs/leaprun/internal/template"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// cancelledReason is the skip reason for models not started before the
// run was cancelled.
const cancelledReason = "run cancelled"

// run holds the state of one Run call.
type run struct {
	engine *Engine
	dag    *dag.DAG
	rc     *RunContext
	tmp    *assetTables
}

// Run builds the DAG for models and executes every model once. The error
// is non-nil only when no model could run at all: a dependency cycle or a
// duplicate model name. Every per-model failure is recorded in the
// returned summary instead.
func (e *Engine) Run(ctx context.Context, models []*core.Model) (*core.Summary, *RunContext, error) {
	d, err := dag.Build(models)
	if err != nil {
		e.logger.Error("run aborted", "error", err)
		return nil, nil, err
	}

	r := e.newRun(d)
	e.logger.Info("starting run", "run_id", r.rc.RunID(), "models", d.Len(), "threads", e.threads)

	if err := e.mat.EnsureSchema(ctx, e.schema); err != nil {
		r.rc.Log(core.SeverityError, "", err.Error())
	}

	if e.threads <= 1 {
		r.sequential(ctx)
	} else {
		r.parallel(ctx)
	}
	r.dropAssets(context.WithoutCancel(ctx))

	summary := r.rc.Summary()
	e.logger.Info("run finished",
		"run_id", summary.RunID,
		"successes", summary.Successes,
		"failures", summary.Failures,
		"skipped", summary.Skipped,
		"duration", summary.TotalExecutionTime)
	return summary, r.rc, nil
}

func (e *Engine) newRun(d *dag.DAG) *run {
	return &run{
		engine: e,
		dag:    d,
		rc:     newRunContext(uuid.NewString(), d.ExecutionOrder(), e.logger),
		tmp:    &assetTables{loaded: make(map[string]string), owners: make(map[string]string)},
	}
}

func (r *run) sequential(ctx context.Context) {
	for _, name := range r.dag.ExecutionOrder() {
		if ctx.Err() != nil {
			r.cancel(name)
			continue
		}
		r.execute(ctx, name)
	}
}

// parallel runs one level at a time. A level starts only after every
// model of the previous level is terminal.
func (r *run) parallel(ctx context.Context) {
	sem := semaphore.NewWeighted(int64(r.engine.threads))
	for _, level := range r.dag.Levels() {
		var g errgroup.Group
		for i, name := range level {
			if err := sem.Acquire(ctx, 1); err != nil {
				for _, rest := range level[i:] {
					r.cancel(rest)
				}
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				r.execute(ctx, name)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (r *run) cancel(name string) {
	if r.rc.Status(name) != core.StatusPending {
		return
	}
	m := r.dag.Model(name)
	r.rc.skip(name, m.Kind, cancelledReason, core.ErrCancelled)
}

// execute runs one model through its state machine. Once started, a
// model is not interrupted by run cancellation, only by its own timeout.
func (r *run) execute(ctx context.Context, name string) {
	m := r.dag.Model(name)
	if ctx.Err() != nil {
		r.cancel(name)
		return
	}

	for _, dep := range r.dag.Dependencies(name) {
		switch st := r.rc.Status(dep); st {
		case core.StatusFailed, core.StatusSkipped:
			r.rc.skip(name, m.Kind, fmt.Sprintf("upstream model %s %s", dep, st), "")
			return
		}
	}

	r.rc.start(name)
	start := time.Now()

	mctx := context.WithoutCancel(ctx)
	timeout := r.timeout(m)
	if timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(mctx, timeout)
		defer cancel()
	}

	result, res, err := r.runModel(mctx, m)
	elapsed := time.Since(start)
	if err != nil {
		if timeout > 0 && errors.Is(mctx.Err(), context.DeadlineExceeded) {
			err = core.WithKind(core.ErrTimeout, fmt.Errorf("timed out after %s: %w", timeout, err))
		}
		r.rc.fail(name, m.Kind, err, elapsed)
		return
	}

	for _, w := range res.Warnings {
		r.rc.Log(core.SeverityWarning, name, w)
	}
	if err := r.rc.complete(name, m.Kind, result, res.Rows, elapsed); err != nil {
		r.rc.fail(name, m.Kind, err, elapsed)
	}
}

func (r *run) timeout(m *core.Model) time.Duration {
	if m.Config.Timeout > 0 {
		return m.Config.Timeout
	}
	return r.engine.modelTimeout
}

func (r *run) strategy(m *core.Model) core.IncrementalStrategy {
	if m.Config.Incremental != "" {
		return m.Config.Incremental
	}
	return r.engine.incremental
}

// runModel produces and materializes a model's output. The returned
// table is what the run context keeps: the full output of a procedural
// model, or the read-back sample of a declarative one.
func (r *run) runModel(ctx context.Context, m *core.Model) (*core.Table, *materialize.Result, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, core.WithKind(core.ErrInvalidModel, err)
	}

	req := materialize.Request{
		Schema:    r.engine.schema,
		Target:    m.Name,
		Policy:    m.Materialized(),
		Indexes:   m.Config.Indexes,
		UniqueKey: m.Config.UniqueKey,
		Strategy:  r.strategy(m),
	}

	switch m.Kind {
	case core.KindDeclarative:
		sql, err := r.render(ctx, m)
		if err != nil {
			return nil, nil, err
		}
		req.Query = sql
	case core.KindProcedural:
		out, err := r.transform(ctx, m)
		if err != nil {
			return nil, nil, err
		}
		req.Table = out
	default:
		return nil, nil, fmt.Errorf("model %s: unknown kind %s", m.Name, m.Kind)
	}

	res, err := r.engine.mat.Materialize(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if req.Table != nil {
		return req.Table, res, nil
	}
	return res.Sample, res, nil
}

// render expands the model's template into executable SQL.
func (r *run) render(ctx context.Context, m *core.Model) (string, error) {
	e := r.engine
	cfg, err := starctx.ConfigToStarlark(configMap(m))
	if err != nil {
		return "", core.WithKind(core.ErrRender, fmt.Errorf("model config: %w", err))
	}

	this := &starctx.ThisInfo{Name: m.Name, Schema: e.schema, Materialized: string(m.Materialized())}
	sctx := starctx.NewContext(cfg, e.environment, e.target(), this,
		starctx.WithMacroRegistry(e.macros),
		starctx.WithResolver(&modelResolver{ctx: ctx, run: r, model: m}),
	)

	file := m.Path
	if file == "" {
		file = m.Name
	}
	sql, err := template.RenderString(m.Body, file, sctx)
	if err != nil {
		return "", err
	}
	e.logger.Debug("model rendered", "model", m.Name, "bytes", len(sql))
	return sql, nil
}

// transform calls a procedural model with the outputs of its
// dependencies. Procedural dependencies pass their in-memory output;
// everything else is read back from the database.
func (r *run) transform(ctx context.Context, m *core.Model) (*core.Table, error) {
	inputs := make(map[string]*core.Table, len(m.DependsOn))
	for _, dep := range m.DependsOn {
		if up := r.dag.Model(dep); up != nil && up.Kind == core.KindProcedural {
			if t, ok := r.rc.Result(dep); ok {
				inputs[dep] = t
				continue
			}
		}
		t, err := r.engine.mat.ReadTable(ctx, r.engine.schema, dep, -1)
		if err != nil {
			return nil, core.WithKind(core.ErrTransform, fmt.Errorf("read input %s: %w", dep, err))
		}
		inputs[dep] = t
	}

	out, err := callTransform(ctx, m.Transform, inputs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, core.WithKind(core.ErrTransform, fmt.Errorf("transform: %w", err))
	}
	if out == nil {
		return nil, core.WithKind(core.ErrTransform, errors.New("transform returned no table"))
	}
	return out, nil
}

// callTransform turns a panicking transform into an error.
func callTransform(ctx context.Context, fn core.TransformFunc, inputs map[string]*core.Table) (out *core.Table, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, inputs)
}

// configMap exposes the model config to templates as config[...].
func configMap(m *core.Model) map[string]any {
	out := make(map[string]any, len(m.Config.Extra)+4)
	for k, v := range m.Config.Extra {
		out[k] = v
	}
	out["materialized"] = string(m.Materialized())
	if len(m.Config.UniqueKey) > 0 {
		out["unique_key"] = m.Config.UniqueKey
	}
	if len(m.Config.Tags) > 0 {
		out["tags"] = m.Config.Tags
	}
	return out
}

// Render expands one model's template without executing it. Tabular
// assets it uses are loaded and dropped again.
func (e *Engine) Render(ctx context.Context, m *core.Model) (string, error) {
	if m.Kind != core.KindDeclarative {
		return "", fmt.Errorf("model %s is %s and has no template", m.Name, m.Kind)
	}
	d, err := dag.Build([]*core.Model{m})
	if err != nil {
		return "", err
	}
	r := e.newRun(d)
	defer r.dropAssets(context.WithoutCancel(ctx))
	return r.render(ctx, m)
}
