package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forecast struct {
	City  string
	Temps []int
	note  string
}

func testScope() Scope {
	return Scope{
		Context: map[string]any{
			"name":      "toolflow",
			"count":     42,
			"user":      map[string]any{"email": "a@b.c", "tags": []any{"x", "y"}},
			"a.b":       "literal",
			"forecast":  forecast{City: "Oslo", Temps: []int{3, 5}, note: "hidden"},
			"matrix":    [][]int{{1, 2}, {3, 4}},
			"nil_value": nil,
		},
		Steps: map[string]map[string]any{
			"fetch": {
				"result": map[string]any{"items": []any{"first", "second", "third"}},
				"error":  nil,
			},
			"broken": {
				"result": nil,
				"error":  "boom",
			},
		},
	}
}

func TestLookup_ContextKeys(t *testing.T) {
	scope := testScope()

	v, ok := Lookup("context.name", scope)
	require.True(t, ok)
	assert.Equal(t, "toolflow", v)

	v, ok = Lookup("context.count", scope)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = Lookup("context.user.email", scope)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", v)

	v, ok = Lookup("context.user.tags.1", scope)
	require.True(t, ok)
	assert.Equal(t, "y", v)

	// Literal dotted keys take precedence over nested access.
	v, ok = Lookup("context.a.b", scope)
	require.True(t, ok)
	assert.Equal(t, "literal", v)
}

func TestLookup_StepResults(t *testing.T) {
	scope := testScope()

	v, ok := Lookup("fetch.result.items.2", scope)
	require.True(t, ok)
	assert.Equal(t, "third", v)

	v, ok = Lookup("broken.error", scope)
	require.True(t, ok)
	assert.Equal(t, "boom", v)

	_, ok = Lookup("broken.result", scope)
	assert.False(t, ok)
}

func TestLookup_ReflectedValues(t *testing.T) {
	scope := testScope()

	v, ok := Lookup("context.forecast.City", scope)
	require.True(t, ok)
	assert.Equal(t, "Oslo", v)

	v, ok = Lookup("context.forecast.Temps.1", scope)
	require.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = Lookup("context.matrix.1.0", scope)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = Lookup("context.forecast.note", scope)
	assert.False(t, ok, "unexported fields are not addressable")
}

func TestLookup_MissesResolveToNoValue(t *testing.T) {
	scope := testScope()

	paths := []string{
		"",
		"context",
		"context.missing",
		"context.user.missing",
		"context.user.tags.9",
		"context.user.tags.-1",
		"context.user.tags.+1",
		"context.name.deeper",
		"context.nil_value",
		"never_ran.result",
		"fetch.result.items.x",
	}
	for _, p := range paths {
		v, ok := Lookup(p, scope)
		assert.False(t, ok, "path %q", p)
		assert.Nil(t, v, "path %q", p)
	}
}

func TestResolve_WholeTemplatePreservesType(t *testing.T) {
	scope := testScope()

	params := map[string]any{
		"a":      "${context.count}",
		"items":  "${fetch.result.items}",
		"plain":  7,
		"nested": map[string]any{"who": "${context.name}", "list": []any{"${context.count}", true}},
	}

	out := Resolve(params, scope)

	assert.Equal(t, 42, out["a"])
	assert.Equal(t, []any{"first", "second", "third"}, out["items"])
	assert.Equal(t, 7, out["plain"])
	assert.Equal(t, map[string]any{"who": "toolflow", "list": []any{42, true}}, out["nested"])

	// Inputs are untouched.
	assert.Equal(t, "${context.count}", params["a"])
	assert.Equal(t, "${context.name}", params["nested"].(map[string]any)["who"])
}

func TestResolve_EmbeddedReferencesRenderAsText(t *testing.T) {
	scope := testScope()

	out := Resolve(map[string]any{
		"greeting": "hello ${context.name}, you have ${context.count} items",
		"missing":  "value=[${context.nope}]",
		"json":     "user=${context.user}",
		"two":      "${context.name}${context.count}",
	}, scope)

	assert.Equal(t, "hello toolflow, you have 42 items", out["greeting"])
	assert.Equal(t, "value=[]", out["missing"])
	assert.Equal(t, `user={"email":"a@b.c","tags":["x","y"]}`, out["json"])
	assert.Equal(t, "toolflow42", out["two"])
}

func TestResolve_UnresolvedWholeTemplateIsNil(t *testing.T) {
	out := Resolve(map[string]any{"x": "${step.result}"}, Scope{})

	v, present := out["x"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestResolve_StringCollectionsKeepTheirTypes(t *testing.T) {
	scope := testScope()

	out := Resolve(map[string]any{
		"headers": map[string]string{"X-Count": "${context.count}"},
		"args":    []string{"--name", "${context.name}"},
	}, scope)

	assert.Equal(t, map[string]string{"X-Count": "42"}, out["headers"])
	assert.Equal(t, []string{"--name", "toolflow"}, out["args"])
}

func TestHasTemplate(t *testing.T) {
	assert.True(t, HasTemplate("${a.b}"))
	assert.True(t, HasTemplate("x ${a} y"))
	assert.False(t, HasTemplate("$a"))
	assert.False(t, HasTemplate("${}"))
}
