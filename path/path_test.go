package path

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/scope"
)

func TestLookup(t *testing.T) {
	obj := map[string]any{"name": "ren"}
	arr := []any{"a", "b", "c"}

	v, ok := Lookup(obj, "name")
	assert.True(t, ok)
	assert.Equal(t, "ren", v)

	_, ok = Lookup(obj, "missing")
	assert.False(t, ok)

	v, ok = Lookup(arr, "1")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = Lookup(arr, "9")
	assert.False(t, ok)

	_, ok = Lookup(arr, "nope")
	assert.False(t, ok)

	_, ok = Lookup("scalar", "x")
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{float64(0), false},
		{float64(1), true},
		{0, false},
		{1, true},
		{map[string]any{}, true},
		{[]any{}, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Truthy(c.v))
	}
}

func ident(v string) ast.Component { return ast.Component{Kind: ast.CompIdentifier, Value: v} }

func TestResolveDefaultPrecedence(t *testing.T) {
	st := scope.NewStack(map[string]any{"root": true, "name": "root-name"})
	inner := scope.New()
	inner.SetBase(map[string]any{"name": "inner-name"})
	st.Push(inner)

	p := &ast.Path{Components: []ast.Component{ident("name")}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "inner-name", v)
}

func TestResolveDefaultFallsBackToOuterFrame(t *testing.T) {
	st := scope.NewStack(map[string]any{"name": "root-name"})
	inner := scope.New()
	inner.SetBase(map[string]any{"other": 1})
	st.Push(inner)

	p := &ast.Path{Components: []ast.Component{ident("name")}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "root-name", v)
}

func TestResolveRoot(t *testing.T) {
	st := scope.NewStack(map[string]any{"name": "root-name"})
	inner := scope.New()
	inner.SetBase(map[string]any{"name": "inner-name"})
	st.Push(inner)

	p := &ast.Path{IsRoot: true, Components: []ast.Component{ident("@root"), ident("name")}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "root-name", v)
}

func TestResolveExplicitThis(t *testing.T) {
	st := scope.NewStack(map[string]any{"name": "root-name"})
	inner := scope.New()
	inner.SetBase(map[string]any{"name": "inner-name"})
	st.Push(inner)

	p := &ast.Path{ExplicitThis: true, Components: []ast.Component{{Kind: ast.CompThisKeyword, Value: "this"}, ident("name")}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "inner-name", v)
}

func TestResolveLocal(t *testing.T) {
	st := scope.NewStack(nil)
	top := st.Top()
	top.SetLocal("@index", 3)

	// Component.Value holds the local's name without the leading "@"
	// (the lexer strips it when scanning token.LocalIdentifier); Resolve
	// re-adds it before querying the scope stack, whose locals are always
	// keyed with the "@" prefix (scope.NewStack's "@root", each/with's
	// "@index"/"@first"/"@last"/"@key").
	p := &ast.Path{Components: []ast.Component{{Kind: ast.CompLocalIdentifier, Value: "index"}}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestResolveParent(t *testing.T) {
	st := scope.NewStack(map[string]any{"name": "root-name"})
	inner := scope.New()
	inner.SetBase(map[string]any{"name": "inner-name"})
	st.Push(inner)

	p := &ast.Path{Parents: 1, Components: []ast.Component{ident("name")}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "root-name", v)
}

func TestResolveArrayAccess(t *testing.T) {
	st := scope.NewStack(map[string]any{"items": []any{"a", "b"}})
	p := &ast.Path{Components: []ast.Component{
		ident("items"),
		{Kind: ast.CompDelimiter},
		{Kind: ast.CompArrayAccess, Value: "1"},
	}}
	v, ok := Resolve(p, st)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}
