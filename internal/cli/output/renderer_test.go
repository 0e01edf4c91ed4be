package output

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"TEXT":     ModeText,
		"md":       ModeMarkdown,
		"markdown": ModeMarkdown,
		"json":     ModeJSON,
		"yaml":     ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_NoANSIWhenNotTTY(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)
	r.Header(1, "Models")
	r.Success("done")
	r.Error("broken")

	assert.Contains(t, out.String(), "Models")
	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, errOut.String(), "✗ broken")
	assert.False(t, ansiPattern.MatchString(out.String()+errOut.String()))
}

func TestRenderer_MarkdownHeader(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Level 0")
	assert.Equal(t, "## Level 0\n\n", out.String())
}

func TestRenderer_DataTable(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	r.DataTable(&core.Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "alice"}, {int64(2), nil}},
	})
	s := out.String()
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "NULL")
	assert.Contains(t, s, "(2 rows)")

	out.Reset()
	r.DataTable(nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestRenderer_MarkdownTable(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"model", "status"}, [][]any{{"orders", "completed"}})
	assert.Contains(t, strings.ToLower(out.String()), "| model | status |")
	assert.Contains(t, out.String(), "| orders | completed |")
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSONLine(RunEvent{Event: "run_start", RunID: "r1"}))
	assert.JSONEq(t, `{"event":"run_start","timestamp":"","run_id":"r1"}`, out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "###### Deep", FormatHeader(9, "Deep"))
	assert.Equal(t, "- **Kind:** declarative", FormatKeyValue("Kind", "declarative"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
	assert.Equal(t, "- a\n- b", FormatList([]string{"a", "b"}))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "x", FormatValue([]byte("x")))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond+300*time.Microsecond))
}
