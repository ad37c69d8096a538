package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

func plainRenderer(t *testing.T, pretty bool) *Renderer {
	t.Helper()
	r, err := NewRenderer(RenderingPreferences{Pretty: pretty})
	require.NoError(t, err)
	return r
}

func TestFormatValueCompact(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "nil"},
		{"int", 42, "42"},
		{"integral float", 3.0, "3"},
		{"fraction", 2.5, "2.5"},
		{"bool", true, "1"},
		{"string", "a \"quoted\" \\ line\n", `"a \"quoted\" \\ line\n"`},
		{"empty array", []any{}, "({ })"},
		{"empty mapping", map[string]any{}, "([ ])"},
		{"array", []any{1, "two", nil}, `({ 1, "two", nil })`},
		{"sorted mapping", map[string]any{"b": 2, "a": 1}, `([ "a": 1, "b": 2 ])`},
		{"nested", map[string]any{"list": []any{1.0, map[string]any{"x": nil}}}, `([ "list": ({ 1, ([ "x": nil ]) }) ])`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatValue(tc.value, false))
		})
	}
}

func TestFormatValuePretty(t *testing.T) {
	value := map[string]any{
		"name":  "room",
		"exits": []any{"north", "south"},
	}

	want := strings.Join([]string{
		`([`,
		`    "exits": ({`,
		`        "north",`,
		`        "south"`,
		`    }),`,
		`    "name": "room"`,
		`])`,
	}, "\n")
	assert.Equal(t, want, FormatValue(value, true))
}

func TestRenderResultSuccess(t *testing.T) {
	r := plainRenderer(t, false)

	out, err := r.RenderResult(interfaces.CodeResult{ID: 1, Success: true, Result: []any{1, 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "({ 1, 2 })", out)

	out, err = r.RenderResult(interfaces.CodeResult{ID: 2, Success: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nil", out)
}

func TestRenderResultFailureWithDiagnostics(t *testing.T) {
	r := plainRenderer(t, false)

	diag := interfaces.CompileError{File: "/usr/foo.c", Line: 3, Message: "syntax error", Raw: "/usr/foo.c, 3: syntax error"}
	out, err := r.RenderResult(interfaces.CodeResult{
		ID:            5,
		Error:         diag.Raw + "\nFailed to compile",
		CompileErrors: []interfaces.CompileError{diag},
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "/usr/foo.c, 3: syntax error")
	assert.Contains(t, out, "Failed to compile")
	assert.Equal(t, 1, strings.Count(out, "syntax error"), "diagnostic must not be repeated in the error text")
}

func TestRenderResultFailureWithoutMessage(t *testing.T) {
	r := plainRenderer(t, false)

	out, err := r.RenderResult(interfaces.CodeResult{ID: 5}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "command failed")
}

func TestRenderValueHighlighted(t *testing.T) {
	r, err := NewRenderer(RenderingPreferences{Highlight: true})
	require.NoError(t, err)

	out, err := r.RenderValue(map[string]any{"a": 1}, &interfaces.Theme{Name: "light", Code: "github"})
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")
	assert.Equal(t, "github", r.syntaxHighlighter.Theme())
}

func TestUnknownCodeStyleKeepsPrevious(t *testing.T) {
	r, err := NewRenderer(RenderingPreferences{Highlight: true})
	require.NoError(t, err)

	_, err = r.RenderValue(1, &interfaces.Theme{Name: "odd", Code: "no-such-style"})
	require.NoError(t, err)
	assert.Equal(t, "monokai", r.syntaxHighlighter.Theme())
}

func TestRenderTable(t *testing.T) {
	r := plainRenderer(t, false)

	table := NewStatusTable("Server status", [][2]string{
		{"Version", "DGD 1.7"},
		{"Uptime", "01:02:03"},
	})
	out := r.RenderTable(table, nil)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Server status")
	assert.Contains(t, lines[3], "DGD 1.7")
	assert.Contains(t, lines[4], "01:02:03")
	assert.Empty(t, r.RenderTable(&TableContent{}, nil))
}

func TestCollapsibleFolding(t *testing.T) {
	cm := NewCollapsibleManager(3)
	text := "1\n2\n3\n4\n5"

	require.True(t, cm.Foldable(text))
	folded := cm.Apply(7, text)
	assert.True(t, strings.HasPrefix(folded, "1\n2\n3\n"))
	assert.Contains(t, folded, "2 more lines")

	assert.True(t, cm.Toggle(7))
	assert.Equal(t, text, cm.Apply(7, text))

	cm.Forget(7)
	assert.False(t, cm.IsExpanded(7))
	assert.Equal(t, "short", cm.Apply(1, "short"))
	assert.False(t, NewCollapsibleManager(0).Foldable(text))
}
