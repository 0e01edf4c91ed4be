package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func writeMacro(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const utilsMacro = `
def greet(name):
    """Say hello."""
    return "Hello, " + name + "!"

def cents(col, scale=100):
    return col + " * " + str(scale)

_private = "should not be exported"
`

func TestLoader_Load(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		modules, err := NewLoader("/nonexistent/path/to/macros").Load()
		require.NoError(t, err)
		assert.Nil(t, modules)
	})

	t.Run("not a directory", func(t *testing.T) {
		path := writeMacro(t, t.TempDir(), "macros", "x")
		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})

	t.Run("exports public names", func(t *testing.T) {
		dir := t.TempDir()
		writeMacro(t, dir, "utils.star", utilsMacro)

		modules, err := NewLoader(dir).Load()
		require.NoError(t, err)
		require.Len(t, modules, 1)
		assert.Equal(t, "utils", modules[0].Namespace)
		assert.Contains(t, modules[0].Exports, "greet")
		assert.Contains(t, modules[0].Exports, "cents")
		assert.NotContains(t, modules[0].Exports, "_private")
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writeMacro(t, dir, "broken.star", "def oops(:\n")
		_, err := NewLoader(dir).Load()
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Contains(t, le.Error(), "macros/broken.star")
	})

	t.Run("invalid namespace", func(t *testing.T) {
		dir := t.TempDir()
		writeMacro(t, dir, "my-utils.star", "x = 1\n")
		_, err := NewLoader(dir).Load()
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	writeMacro(t, dir, "utils.star", utilsMacro)

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.True(t, reg.Has("utils"))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"utils"}, reg.Namespaces())

	dict := reg.ToStarlarkDict()
	ns, ok := dict["utils"].(starlark.HasAttrs)
	require.True(t, ok)
	fn, err := ns.Attr("greet")
	require.NoError(t, err)

	out, err := starlark.Call(&starlark.Thread{}, fn, starlark.Tuple{starlark.String("world")}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("Hello, world!"), out)
}

func TestRegistry_ReservedNamespace(t *testing.T) {
	for _, reserved := range ReservedNamespaces {
		t.Run(reserved, func(t *testing.T) {
			err := NewRegistry().Register(&LoadedModule{Namespace: reserved, Path: reserved + ".star"})
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&LoadedModule{Namespace: "utils", Path: "a/utils.star"}))
	assert.Error(t, reg.Register(&LoadedModule{Namespace: "utils", Path: "b/utils.star"}))
}

func TestDescribe(t *testing.T) {
	path := writeMacro(t, t.TempDir(), "utils.star", utilsMacro)

	ns, err := Describe(path)
	require.NoError(t, err)
	assert.Equal(t, "utils", ns.Name)
	require.Len(t, ns.Functions, 2)
	assert.Equal(t, "greet", ns.Functions[0].Name)
	assert.Equal(t, "Say hello.", ns.Functions[0].Docstring)
	assert.Equal(t, []string{"col", "scale=..."}, ns.Functions[1].Args)
}
