package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestConfigToStarlark(t *testing.T) {
	v, err := ConfigToStarlark(map[string]any{
		"materialized": "table",
		"tags":         []string{"finance", "metrics"},
		"meta":         map[string]any{"priority": "high"},
	})
	require.NoError(t, err)

	cfg, ok := v.(*ConfigValue)
	require.True(t, ok, "expected *ConfigValue, got %T", v)

	got, found, err := cfg.Get(starlark.String("materialized"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, starlark.String("table"), got)

	tags, found, _ := cfg.Get(starlark.String("tags"))
	require.True(t, found)
	assert.Equal(t, 2, tags.(*starlark.List).Len())
}

func TestConfigToStarlark_Nil(t *testing.T) {
	v, err := ConfigToStarlark(nil)
	require.NoError(t, err)
	assert.False(t, bool(v.Truth()))
}

func TestConfigValue_Call(t *testing.T) {
	cfg := NewConfigValue(nil)
	v, err := starlark.Call(&starlark.Thread{}, cfg, nil, []starlark.Tuple{
		{starlark.String("materialized"), starlark.String("view")},
	})
	require.NoError(t, err)
	assert.Equal(t, starlark.None, v)
}

func TestConfigValue_Unhashable(t *testing.T) {
	_, err := NewConfigValue(nil).Hash()
	assert.Error(t, err)
}

func TestPredeclared(t *testing.T) {
	d := starlark.NewDict(0)
	globals := Predeclared(d, "prod", &TargetInfo{Type: "sqlite"}, nil)

	_, ok := globals["config"].(*ConfigValue)
	assert.True(t, ok, "plain dicts are wrapped")
	assert.Equal(t, starlark.String("prod"), globals["env"])
	assert.Contains(t, globals, "target")
	assert.NotContains(t, globals, "this")
}

func TestResolverBuiltins_ArgChecking(t *testing.T) {
	builtins := ResolverBuiltins(&stubResolver{})
	thread := &starlark.Thread{}

	_, err := starlark.Call(thread, builtins["ref"], nil, nil)
	assert.Error(t, err, "ref needs a name")
	assert.NoError(t, builtinError(thread), "argument errors are not resolver errors")

	_, err = starlark.Call(thread, builtins["source"], starlark.Tuple{starlark.String("raw")}, nil)
	assert.Error(t, err, "source needs two arguments")

	_, err = starlark.Call(thread, builtins["is_incremental"], starlark.Tuple{starlark.True}, nil)
	assert.Error(t, err)
}
