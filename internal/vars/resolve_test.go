package vars

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextOf(t *testing.T, raw map[string]any) Context {
	t.Helper()
	c := make(Context, len(raw))
	for k, v := range raw {
		c[k] = FromAny(v)
	}
	return c
}

func resolveMap(t *testing.T, raw map[string]any) (map[string]any, error) {
	t.Helper()
	resolver := &Resolver{}
	resolved, err := resolver.Resolve(contextOf(t, raw))
	if err != nil {
		return nil, err
	}
	return resolved.AsMap(), nil
}

func TestResolveSimpleSubstitution(t *testing.T) {
	got, err := resolveMap(t, map[string]any{
		"base_domain": "example.com",
		"url":         "https://{{ .base_domain }}",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got["url"])
	assert.Equal(t, "example.com", got["base_domain"])
}

func TestResolveChainedReferences(t *testing.T) {
	// c depends on b, which depends on a: needs more than one pass.
	got, err := resolveMap(t, map[string]any{
		"a": "root",
		"b": "{{ .a }}-mid",
		"c": "{{ .b }}-leaf",
	})
	require.NoError(t, err)
	assert.Equal(t, "root-mid-leaf", got["c"])
}

func TestResolveNestedValues(t *testing.T) {
	got, err := resolveMap(t, map[string]any{
		"name": "rproxy",
		"svc": map[string]any{
			"container": "{{ .name }}-app",
			"endpoints": []any{"https://{{ .name }}.local", "plain"},
		},
	})
	require.NoError(t, err)

	svc := got["svc"].(map[string]any)
	assert.Equal(t, "rproxy-app", svc["container"])
	assert.Equal(t, []any{"https://rproxy.local", "plain"}, svc["endpoints"])
}

func TestResolveDottedReference(t *testing.T) {
	got, err := resolveMap(t, map[string]any{
		"db":  map[string]any{"host": "db1", "port": 5432},
		"dsn": "postgres://{{ .db.host }}:{{ .db.port }}",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://db1:5432", got["dsn"])
}

func TestResolveDefersOnUnresolvedSubtree(t *testing.T) {
	// c references b.inner, which is itself an expression; c must wait for
	// the pass after b.inner resolves.
	got, err := resolveMap(t, map[string]any{
		"a": "x",
		"b": map[string]any{"inner": "{{ .a }}"},
		"c": "{{ .b.inner }}!",
	})
	require.NoError(t, err)
	assert.Equal(t, "x!", got["c"])
}

func TestResolveSprigFunctions(t *testing.T) {
	got, err := resolveMap(t, map[string]any{
		"name":  "rproxy",
		"upper": "{{ upper .name }}",
		"trim":  `{{ trim "  padded  " }}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "RPROXY", got["upper"])
	assert.Equal(t, "padded", got["trim"])
}

func TestResolveLeavesNonExpressionsAlone(t *testing.T) {
	raw := map[string]any{
		"num":   12,
		"flag":  true,
		"none":  nil,
		"plain": "no markers here",
		"list":  []any{1, "two", false},
	}
	got, err := resolveMap(t, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestResolveIdempotent(t *testing.T) {
	raw := map[string]any{
		"a": "root",
		"b": "{{ .a }}-mid",
		"c": "{{ .b }}-leaf",
	}

	resolver := &Resolver{}
	first, err := resolver.Resolve(contextOf(t, raw))
	require.NoError(t, err)

	second, err := resolver.Resolve(first)
	require.NoError(t, err)
	assert.Equal(t, first.AsMap(), second.AsMap())

	// Same raw input twice yields identical output.
	again, err := resolver.Resolve(contextOf(t, raw))
	require.NoError(t, err)
	assert.Equal(t, first.AsMap(), again.AsMap())
}

func TestResolveUndefinedVariable(t *testing.T) {
	_, err := resolveMap(t, map[string]any{
		"url": "https://{{ .missing_domain }}",
	})
	require.Error(t, err)

	var undefErr *UndefinedVariableError
	require.ErrorAs(t, err, &undefErr)
	assert.Equal(t, "missing_domain", undefErr.Variable)
	assert.Equal(t, "url", undefErr.Path)
}

func TestResolveUndefinedNestedReference(t *testing.T) {
	_, err := resolveMap(t, map[string]any{
		"db":  map[string]any{"host": "h1"},
		"dsn": "{{ .db.password }}",
	})
	require.Error(t, err)

	var undefErr *UndefinedVariableError
	require.ErrorAs(t, err, &undefErr)
	assert.Equal(t, "db.password", undefErr.Variable)
}

func TestResolveCycleTerminates(t *testing.T) {
	_, err := resolveMap(t, map[string]any{
		"a": "{{ .b }}",
		"b": "{{ .a }}",
	})
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Chain, "a")
	assert.Contains(t, cycleErr.Chain, "b")
}

func TestResolveThreeWayCycle(t *testing.T) {
	_, err := resolveMap(t, map[string]any{
		"a": "{{ .b }}",
		"b": "{{ .c }}",
		"c": "{{ .a }}",
	})
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Chain, 3)
}

func TestResolvePassLimit(t *testing.T) {
	// A dependency chain deeper than the pass limit is still progressing
	// when the limit hits, which is reported as non-convergence rather than
	// a cycle.
	raw := map[string]any{"v0": "base"}
	for i := 1; i <= 15; i++ {
		raw[fmt.Sprintf("v%d", i)] = fmt.Sprintf("{{ .v%d }}+", i-1)
	}

	_, err := resolveMap(t, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not converge")
}

func TestResolveInvalidExpression(t *testing.T) {
	_, err := resolveMap(t, map[string]any{
		"bad": "{{ .unterminated",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestTemplateRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{
			name: "single reference",
			text: "{{ .name }}",
			want: [][]string{{"name"}},
		},
		{
			name: "dotted path",
			text: "{{ .db.host }}",
			want: [][]string{{"db", "host"}},
		},
		{
			name: "multiple references deduplicated and sorted",
			text: "{{ .b }}{{ .a }}{{ .b }}",
			want: [][]string{{"a"}, {"b"}},
		},
		{
			name: "reference through function call",
			text: "{{ upper .name }}",
			want: [][]string{{"name"}},
		},
		{
			name: "reference inside if",
			text: "{{ if .flag }}{{ .value }}{{ end }}",
			want: [][]string{{"flag"}, {"value"}},
		},
		{
			name: "no references",
			text: "{{ 42 }}",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := templateRefs(tt.text)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
