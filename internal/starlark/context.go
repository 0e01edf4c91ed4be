package starlark

import (
	"fmt"
	"maps"
	"sync"

	"github.com/leapstack-labs/leaprun/internal/macro"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions is the dialect for template expressions and model files.
var fileOptions = &syntax.FileOptions{Set: true}

// ExecutionContext provides all globals and state for Starlark template execution.
type ExecutionContext struct {
	// Config is the "config" global, typically a *ConfigValue
	// Accessible as: config["materialized"]
	Config starlark.Value

	// Env is the current environment string ("prod", "dev", ...)
	Env string

	// Target contains adapter/database specifics
	// Accessible as: target.type, target.schema, target.database
	Target *TargetInfo

	// This contains current model info
	// Accessible as: this.name, this.schema
	This *ThisInfo

	// Macros contains loaded macro namespaces
	Macros starlark.StringDict

	// Resolver backs ref, source, asset and is_incremental. Without one
	// those builtins are not defined.
	Resolver Resolver

	globals starlark.StringDict
	pool    *ThreadPool
	mu      sync.RWMutex
}

// NewExecutionContext creates a new execution context with the given parameters.
func NewExecutionContext(config starlark.Value, env string, target *TargetInfo, this *ThisInfo) *ExecutionContext {
	return NewContext(config, env, target, this)
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithMacros sets the macros for the context.
func WithMacros(macros starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Macros = macros
	}
}

// WithMacroRegistry sets macros from a macro.Registry.
func WithMacroRegistry(registry *macro.Registry) ContextOption {
	return func(ctx *ExecutionContext) {
		if registry != nil {
			ctx.Macros = registry.ToStarlarkDict()
		}
	}
}

// WithResolver binds the resolver builtins.
func WithResolver(r Resolver) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Resolver = r
	}
}

// NewContext creates a new execution context with functional options.
func NewContext(config starlark.Value, env string, target *TargetInfo, this *ThisInfo, opts ...ContextOption) *ExecutionContext {
	ctx := &ExecutionContext{
		Config: config,
		Env:    env,
		Target: target,
		This:   this,
		Macros: make(starlark.StringDict),
		pool:   NewThreadPool(0),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.buildGlobals()
	return ctx
}

// buildGlobals constructs the combined globals dict.
func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.globals = Predeclared(ctx.Config, ctx.Env, ctx.Target, ctx.This)
	if ctx.Resolver != nil {
		maps.Copy(ctx.globals, ResolverBuiltins(ctx.Resolver))
	}
	for name, m := range ctx.Macros {
		if _, taken := ctx.globals[name]; !taken {
			ctx.globals[name] = m
		}
	}
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddMacros adds macro namespaces to the context.
// Returns error if a macro name conflicts with a builtin.
func (ctx *ExecutionContext) AddMacros(macros starlark.StringDict) error {
	for name := range macros {
		for _, reserved := range macro.ReservedNamespaces {
			if name == reserved {
				return fmt.Errorf("macro namespace %q conflicts with builtin", name)
			}
		}
	}

	ctx.mu.Lock()
	maps.Copy(ctx.Macros, macros)
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

// EvalExpr evaluates a single Starlark expression and returns the result.
// This is used for {{ expr }} template expressions.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local variables.
// This is used for expressions inside loops where loop variables need to be in scope.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.pool.Get(filename)
	defer ctx.pool.Put(thread)

	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		maps.Copy(combined, globals)
		maps.Copy(combined, locals)
		globals = combined
	}

	result, err := starlark.EvalOptions(fileOptions, thread, filename, expr, globals)
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
			Cause:   builtinError(thread),
		}
	}
	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
// This is the typical use case for template expressions.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	return ctx.EvalExprStringWithLocals(expr, filename, line, nil)
}

// EvalExprStringWithLocals evaluates a Starlark expression with local variables and returns the string result.
func (ctx *ExecutionContext) EvalExprStringWithLocals(expr string, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ctx.EvalExprWithLocals(expr, filename, line, locals)
	if err != nil {
		return "", err
	}
	return ValueString(result), nil
}

// ValueString renders a value the way templates splice it into SQL:
// strings unquoted, None as nothing, everything else in Starlark syntax.
func ValueString(v starlark.Value) string {
	switch v := v.(type) {
	case starlark.String:
		return string(v)
	case starlark.NoneType:
		return ""
	default:
		return v.String()
	}
}

// EvalError represents an error during Starlark expression evaluation.
// Cause holds the Go error of a failing builtin such as ref().
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
	Cause   error
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}
