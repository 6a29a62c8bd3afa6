package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/helper"
	"github.com/ravenq/bracket/parser"
)

type fakeTemplates map[string]string

func (f fakeTemplates) GetTemplate(name string) (*ast.Document, string, bool) {
	src, ok := f[name]
	if !ok {
		return nil, "", false
	}
	doc, err := parser.Parse(name, src, parser.Options{})
	if err != nil {
		return nil, "", false
	}
	return doc, src, true
}

func renderSource(t *testing.T, src string, data any, opts Options) string {
	t.Helper()
	doc, err := parser.Parse("t", src, parser.Options{Links: true})
	require.NoError(t, err)
	var sb strings.Builder
	r := New(&sb, fakeTemplates{}, helper.New(), "t", src, data, opts)
	require.NoError(t, r.Render(doc))
	return sb.String()
}

func TestStringifyScalars(t *testing.T) {
	var sb strings.Builder
	r := New(&sb, fakeTemplates{}, helper.New(), "t", "", nil, Options{})

	assert.Equal(t, "", r.Stringify(nil))
	assert.Equal(t, "hi", r.Stringify("hi"))
	assert.Equal(t, "true", r.Stringify(true))
	assert.Equal(t, "3", r.Stringify(float64(3)))
	assert.Equal(t, "3.5", r.Stringify(float64(3.5)))
	assert.Equal(t, `{"a":1}`, r.Stringify(map[string]any{"a": float64(1)}))
}

func TestWriteValueSkipsNil(t *testing.T) {
	out := renderSource(t, "[{{missing}}]", map[string]any{}, Options{})
	assert.Equal(t, "[]", out)
}

func TestStrictMissingVariableRaisesError(t *testing.T) {
	doc, err := parser.Parse("t", "{{missing}}", parser.Options{})
	require.NoError(t, err)
	var sb strings.Builder
	r := New(&sb, fakeTemplates{}, helper.New(), "t", "{{missing}}", map[string]any{}, Options{Strict: true})
	err = r.Render(doc)
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.VariableNotFound))
}

func TestHelperCycleDetectedAtDepthBound(t *testing.T) {
	helpers := helper.New()
	var self helper.Helper
	self = helper.Func(func(r helper.Renderer, ctx *helper.Context) (any, error) {
		return r.Eval(ast.SubExpr{Call: &ast.Call{Target: &ast.Path{Components: []ast.Component{{Kind: ast.CompIdentifier, Value: "recurse"}}}}})
	})
	helpers.Insert("recurse", self)

	var sb strings.Builder
	r := New(&sb, fakeTemplates{}, helpers, "t", "{{recurse}}", nil, Options{MaxHelperDepth: 4})
	doc, err := parser.Parse("t", "{{recurse}}", parser.Options{})
	require.NoError(t, err)
	err = r.Render(doc)
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.HelperCycle))
}

func TestPartialCycleDetected(t *testing.T) {
	templates := fakeTemplates{"a": "{{> b}}", "b": "{{> a}}"}
	doc, _, _ := templates.GetTemplate("a")
	var sb strings.Builder
	r := New(&sb, templates, helper.New(), "a", "{{> b}}", nil, Options{})
	err := r.Render(doc)
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.PartialCycle))
}

func TestRenderLinkAsAnchor(t *testing.T) {
	out := renderSource(t, `[[http://x|label|My "Title"]]`, nil, Options{})
	assert.Equal(t, `<a href="http://x" title="My &quot;Title&quot;">label</a>`, out)
}

func TestRenderLinkDefaultsLabelToHref(t *testing.T) {
	out := renderSource(t, "[[http://x]]", nil, Options{})
	assert.Equal(t, `<a href="http://x">http://x</a>`, out)
}

func TestTrimProtocolAcrossSiblings(t *testing.T) {
	out := renderSource(t, "a \n{{~x~}}\n b", map[string]any{"x": "X"}, Options{})
	assert.Equal(t, "aXb", out)
}

func TestElseIfSkipsUnmatchedBranches(t *testing.T) {
	out := renderSource(t, "{{#if a}}A{{else if b}}B{{else if c}}C{{/if}}", map[string]any{"c": true}, Options{})
	assert.Equal(t, "C", out)
}
