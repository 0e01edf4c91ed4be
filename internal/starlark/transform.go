package starlark

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaprun/pkg/core"
	"go.starlark.net/starlark"
)

// ProceduralModule is a loaded .star model: module-level depends_on and
// config plus a transform(inputs) function.
type ProceduralModule struct {
	Path      string
	DependsOn []string
	Config    map[string]any
	Transform *starlark.Function
}

// LoadProcedural executes a procedural model file and reads its globals.
// The module is frozen after execution, so Transform may be called from
// any goroutine.
func LoadProcedural(path string, src any, predeclared starlark.StringDict) (*ProceduralModule, error) {
	thread := &starlark.Thread{
		Name:  path,
		Print: func(_ *starlark.Thread, _ string) {},
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	mod := &ProceduralModule{Path: path}

	fn, ok := globals["transform"].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: must define a transform(inputs) function", path)
	}
	if fn.NumParams() < 1 {
		return nil, fmt.Errorf("%s: transform must accept an inputs argument", path)
	}
	mod.Transform = fn

	if v, ok := globals["depends_on"]; ok {
		raw, err := ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("%s: depends_on: %w", path, err)
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: depends_on must be a list, got %s", path, v.Type())
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: depends_on entries must be strings", path)
			}
			mod.DependsOn = append(mod.DependsOn, name)
		}
	}

	if v, ok := globals["config"]; ok {
		raw, err := ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("%s: config: %w", path, err)
		}
		cfg, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: config must be a dict, got %s", path, v.Type())
		}
		mod.Config = cfg
	}

	return mod, nil
}

// TransformFunc adapts the module's transform to core.TransformFunc.
// Inputs are passed as a dict of name to table struct. Cancelling ctx
// interrupts the running Starlark code.
func (m *ProceduralModule) TransformFunc() core.TransformFunc {
	return func(ctx context.Context, inputs map[string]*core.Table) (*core.Table, error) {
		arg := starlark.NewDict(len(inputs))
		for name, t := range inputs {
			v, err := TableToStarlark(t)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", name, err)
			}
			if err := arg.SetKey(starlark.String(name), v); err != nil {
				return nil, err
			}
		}
		arg.Freeze()

		thread := &starlark.Thread{
			Name:  m.Path,
			Print: func(_ *starlark.Thread, _ string) {},
		}
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()

		result, err := starlark.Call(thread, m.Transform, starlark.Tuple{arg}, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		return TableFromStarlark(result)
	}
}
