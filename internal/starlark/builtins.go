package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Resolver answers the macro calls a template makes. Each method returns
// the SQL text the call expands to.
type Resolver interface {
	Ref(name string) (string, error)
	Source(source, table string) (string, error)
	Asset(name string) (string, error)
	IsIncremental() (bool, error)
}

// errorKey is the thread-local slot holding the Go error of a failed
// builtin, so callers can recover its concrete type.
const errorKey = "leaprun.builtin_error"

func fail(thread *starlark.Thread, err error) error {
	thread.SetLocal(errorKey, err)
	return err
}

// builtinError returns the Go error recorded by a failed builtin, if any.
func builtinError(thread *starlark.Thread) error {
	if err, ok := thread.Local(errorKey).(error); ok {
		return err
	}
	return nil
}

// ResolverBuiltins returns ref, source, asset and is_incremental bound to r.
func ResolverBuiltins(r Resolver) starlark.StringDict {
	return starlark.StringDict{
		"ref": starlark.NewBuiltin("ref", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			s, err := r.Ref(name)
			if err != nil {
				return nil, fail(thread, err)
			}
			return starlark.String(s), nil
		}),
		"source": starlark.NewBuiltin("source", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var src, table string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &src, &table); err != nil {
				return nil, err
			}
			s, err := r.Source(src, table)
			if err != nil {
				return nil, fail(thread, err)
			}
			return starlark.String(s), nil
		}),
		"asset": starlark.NewBuiltin("asset", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			s, err := r.Asset(name)
			if err != nil {
				return nil, fail(thread, err)
			}
			return starlark.String(s), nil
		}),
		"is_incremental": starlark.NewBuiltin("is_incremental", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			ok, err := r.IsIncremental()
			if err != nil {
				return nil, fail(thread, err)
			}
			return starlark.Bool(ok), nil
		}),
	}
}

// ConfigValue is the "config" global. It reads like a dict
// (config["materialized"]) and can be called as config(...) to declare
// model settings, which renders as nothing.
type ConfigValue struct {
	dict *starlark.Dict
}

var (
	_ starlark.Callable = (*ConfigValue)(nil)
	_ starlark.Mapping  = (*ConfigValue)(nil)
)

// NewConfigValue wraps a config dict. A nil dict is treated as empty.
func NewConfigValue(d *starlark.Dict) *ConfigValue {
	if d == nil {
		d = starlark.NewDict(0)
	}
	return &ConfigValue{dict: d}
}

func (c *ConfigValue) Name() string          { return "config" }
func (c *ConfigValue) String() string        { return c.dict.String() }
func (c *ConfigValue) Type() string          { return "config" }
func (c *ConfigValue) Freeze()               { c.dict.Freeze() }
func (c *ConfigValue) Truth() starlark.Bool  { return c.dict.Truth() }
func (c *ConfigValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: config") }

// Get implements starlark.Mapping.
func (c *ConfigValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	return c.dict.Get(k)
}

// CallInternal implements starlark.Callable. The declaration itself was
// read statically before rendering.
func (c *ConfigValue) CallInternal(_ *starlark.Thread, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return starlark.None, nil
}

// ConfigToStarlark converts a config map to the "config" global.
func ConfigToStarlark(config map[string]any) (starlark.Value, error) {
	if config == nil {
		return NewConfigValue(nil), nil
	}
	v, err := GoToStarlark(config)
	if err != nil {
		return nil, err
	}
	return NewConfigValue(v.(*starlark.Dict)), nil
}

// Predeclared returns the non-resolver globals for template execution:
// config, env, target and this.
func Predeclared(config starlark.Value, env string, target *TargetInfo, this *ThisInfo) starlark.StringDict {
	if config == nil {
		config = NewConfigValue(nil)
	}
	if d, ok := config.(*starlark.Dict); ok {
		config = NewConfigValue(d)
	}

	globals := starlark.StringDict{
		"config": config,
		"env":    starlark.String(env),
	}
	if target != nil {
		globals["target"] = target.ToStarlark()
	}
	if this != nil {
		globals["this"] = this.ToStarlark()
	}
	return globals
}
