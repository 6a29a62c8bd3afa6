package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenq/bracket/ast"
)

// fakeRenderer is a minimal Renderer for exercising block helpers without
// the real render package, recording what Template/Inverse/scope calls it
// received.
type fakeRenderer struct {
	templateCalls int
	inverseCalls  int
	bases         []any
	locals        []map[string]any
	templateErr   error
}

func (f *fakeRenderer) Template(inner *ast.Block) error {
	f.templateCalls++
	return f.templateErr
}

func (f *fakeRenderer) Inverse(inner *ast.Block) error {
	f.inverseCalls++
	return nil
}

type fakeScope struct {
	locals map[string]any
}

func (s *fakeScope) SetLocal(name string, v any) { s.locals[name] = v }

func (f *fakeRenderer) PushScope(base any, hasBase bool) ScopeHandle {
	f.bases = append(f.bases, base)
	s := &fakeScope{locals: map[string]any{}}
	f.locals = append(f.locals, s.locals)
	return s
}
func (f *fakeRenderer) PopScope() {}

func (f *fakeRenderer) RegisterLocal(name string, h Helper)  {}
func (f *fakeRenderer) UnregisterLocal(name string)          {}
func (f *fakeRenderer) Write(s string) error                 { return nil }
func (f *fakeRenderer) Stringify(v any) string                { return "" }
func (f *fakeRenderer) Eval(v ast.ParamValue) (any, error)    { return nil, nil }

func TestRegistryCloneIsIndependent(t *testing.T) {
	r := New()
	clone := r.Clone()
	clone.Insert("double", Func(func(_ Renderer, ctx *Context) (any, error) { return nil, nil }))

	_, ok := r.Get("double")
	assert.False(t, ok)
	_, ok = clone.Get("double")
	assert.True(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	h, ok := r.Remove("if")
	assert.True(t, ok)
	assert.NotNil(t, h)
	_, ok = r.Get("if")
	assert.False(t, ok)
}

func TestIfHelperTakesTemplateBranch(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("if", []any{true}, nil, 0)
	h, ok := New().Get("if")
	require.True(t, ok)
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.templateCalls)
	assert.Equal(t, 0, r.inverseCalls)
}

func TestIfHelperTakesInverseBranch(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("if", []any{false}, nil, 0)
	h, _ := New().Get("if")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.templateCalls)
	assert.Equal(t, 1, r.inverseCalls)
}

func TestUnlessInvertsIf(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("unless", []any{true}, nil, 0)
	h, _ := New().Get("unless")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.templateCalls)
	assert.Equal(t, 1, r.inverseCalls)
}

func TestWithPushesBaseAndRenders(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("with", []any{map[string]any{"a": 1}}, nil, 0)
	h, _ := New().Get("with")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.templateCalls)
	require.Len(t, r.bases, 1)
	assert.Equal(t, map[string]any{"a": 1}, r.bases[0])
}

func TestWithFalsyTakesInverse(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("with", []any{nil}, nil, 0)
	h, _ := New().Get("with")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.templateCalls)
	assert.Equal(t, 1, r.inverseCalls)
}

func TestEachOverArraySetsLocals(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("each", []any{[]any{"a", "b"}}, nil, 0)
	h, _ := New().Get("each")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.templateCalls)
	require.Len(t, r.locals, 2)
	assert.Equal(t, float64(0), r.locals[0]["@index"])
	assert.Equal(t, true, r.locals[0]["@first"])
	assert.Equal(t, false, r.locals[0]["@last"])
	assert.Equal(t, true, r.locals[1]["@last"])
}

func TestEachOverEmptyArrayTakesInverse(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("each", []any{[]any{}}, nil, 0)
	h, _ := New().Get("each")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.templateCalls)
	assert.Equal(t, 1, r.inverseCalls)
}

func TestEachOverObjectSortsKeys(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("each", []any{map[string]any{"z": 1, "a": 2}}, nil, 0)
	h, _ := New().Get("each")
	_, err := h.Call(r, ctx, &ast.Block{})
	require.NoError(t, err)
	require.Len(t, r.locals, 2)
	assert.Equal(t, "a", r.locals[0]["@key"])
	assert.Equal(t, "z", r.locals[1]["@key"])
}

func TestEachOnNonIterableErrors(t *testing.T) {
	r := &fakeRenderer{}
	ctx := NewContext("each", []any{"scalar"}, nil, 0)
	h, _ := New().Get("each")
	_, err := h.Call(r, ctx, &ast.Block{})
	assert.Error(t, err)
}

func TestCompareHelpers(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"eq", float64(1), float64(1), true},
		{"ne", float64(1), float64(2), true},
		{"gt", float64(2), float64(1), true},
		{"gte", float64(1), float64(1), true},
		{"lt", float64(1), float64(2), true},
		{"lte", float64(1), float64(1), true},
	}
	reg := New()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, ok := reg.Get(c.name)
			require.True(t, ok)
			v, err := h.Call(nil, NewContext(c.name, []any{c.a, c.b}, nil, 0), nil)
			require.NoError(t, err)
			assert.Equal(t, c.want, v)
		})
	}
}

func TestCompareRequiresNumericOperands(t *testing.T) {
	h, _ := New().Get("gt")
	_, err := h.Call(nil, NewContext("gt", []any{"a", "b"}, nil, 0), nil)
	assert.Error(t, err)
}

func TestEqDifferentTypesNotEqual(t *testing.T) {
	h, _ := New().Get("eq")
	v, err := h.Call(nil, NewContext("eq", []any{"1", true}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestAndOrNot(t *testing.T) {
	reg := New()

	h, _ := reg.Get("and")
	v, err := h.Call(nil, NewContext("and", []any{true, true, "x"}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = h.Call(nil, NewContext("and", []any{true, false}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	h, _ = reg.Get("or")
	v, err = h.Call(nil, NewContext("or", []any{false, "x"}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	h, _ = reg.Get("not")
	v, err = h.Call(nil, NewContext("not", []any{false}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestLookupHelper(t *testing.T) {
	h, _ := New().Get("lookup")
	v, err := h.Call(nil, NewContext("lookup", []any{map[string]any{"a": 1}, "a"}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestLookupHelperMissingKeyReturnsNil(t *testing.T) {
	h, _ := New().Get("lookup")
	v, err := h.Call(nil, NewContext("lookup", []any{map[string]any{"a": 1}, "b"}, nil, 0), nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestJSONHelper(t *testing.T) {
	h, _ := New().Get("json")
	v, err := h.Call(nil, NewContext("json", []any{map[string]any{"a": float64(1)}}, nil, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)
}

func TestContextArity(t *testing.T) {
	ctx := NewContext("x", []any{1, 2}, nil, 5)
	assert.NoError(t, ctx.Arity(2))
	assert.Error(t, ctx.Arity(1))
	assert.NoError(t, ctx.ArityRange(1, 3))
	assert.Error(t, ctx.ArityRange(3, 4))
}

func TestContextTryGetString(t *testing.T) {
	ctx := NewContext("x", []any{"hi", 5}, nil, 0)
	s, err := ctx.TryGetString(0)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	_, err = ctx.TryGetString(1)
	assert.Error(t, err)

	_, err = ctx.TryGetString(9)
	assert.Error(t, err)
}
