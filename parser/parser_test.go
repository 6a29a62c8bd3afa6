package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
)

func parse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, err := Parse("t", src, Options{Links: true})
	require.NoError(t, err)
	return doc
}

func TestParsePlainText(t *testing.T) {
	doc := parse(t, "hello")
	require.Len(t, doc.Children, 1)
	txt, ok := doc.Children[0].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "hello", txt.Value())
}

func TestParseStatementIsEscapedByDefault(t *testing.T) {
	doc := parse(t, "{{name}}")
	require.Len(t, doc.Children, 1)
	s, ok := doc.Children[0].(*ast.Statement)
	require.True(t, ok)
	assert.True(t, s.Call.Escaped)
	name, ok := s.Call.Name()
	require.True(t, ok)
	assert.Equal(t, "name", name)
}

func TestParseTripleStacheIsUnescaped(t *testing.T) {
	doc := parse(t, "{{{name}}}")
	s := doc.Children[0].(*ast.Statement)
	assert.False(t, s.Call.Escaped)
}

func TestParseBlockRoundTrip(t *testing.T) {
	doc := parse(t, "{{#if a}}x{{/if}}")
	require.Len(t, doc.Children, 1)
	b, ok := doc.Children[0].(*ast.Block)
	require.True(t, ok)
	name, _ := b.Call.Name()
	assert.Equal(t, "if", name)
	require.Len(t, b.Children, 1)
}

func TestParseElseIfProducesConditions(t *testing.T) {
	doc := parse(t, "{{#if a}}A{{else if b}}B{{else}}C{{/if}}")
	b := doc.Children[0].(*ast.Block)
	require.Len(t, b.Conditions, 2)
	require.NotNil(t, b.Conditions[0].Expr)
	sub, ok := b.Conditions[0].Expr.(ast.SubExpr)
	require.True(t, ok)
	name, ok := sub.Call.Name()
	require.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Nil(t, b.Conditions[1].Expr) // bare else
}

func TestParseElseIfAcceptsLiteralCondition(t *testing.T) {
	doc := parse(t, "{{#if a}}A{{else if true}}B{{/if}}")
	b := doc.Children[0].(*ast.Block)
	require.Len(t, b.Conditions, 1)
	lit, ok := b.Conditions[0].Expr.(ast.JSONValue)
	require.True(t, ok)
	assert.Equal(t, true, lit.Value)
}

func TestParseMismatchedCloseTagErrors(t *testing.T) {
	_, err := Parse("t", "{{#if a}}x{{/unless}}", Options{})
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.TagNameMismatch))
}

func TestParseUnclosedBlockErrors(t *testing.T) {
	_, err := Parse("t", "{{#if a}}x", Options{})
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.BlockNotOpen))
}

func TestParseDanglingCloseTagErrors(t *testing.T) {
	_, err := Parse("t", "{{/if}}", Options{})
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.BlockNotOpen))
}

func TestParseBlockTargetMustBeSimpleIdentifier(t *testing.T) {
	_, err := Parse("t", "{{#(eq a b)}}x{{/(eq a b)}}", Options{})
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.BlockIdentifier))
}

func TestParsePartialWithSubexprTarget(t *testing.T) {
	doc := parse(t, "{{> (lookup partials name)}}")
	s := doc.Children[0].(*ast.Statement)
	assert.True(t, s.Call.Partial)
	_, isCall := s.Call.Target.(*ast.Call)
	assert.True(t, isCall)
}

func TestParsePartialBlockWithFallback(t *testing.T) {
	doc := parse(t, "{{#> layout}}fallback{{/layout}}")
	b := doc.Children[0].(*ast.Block)
	assert.True(t, b.Call.Partial)
	name, ok := b.Call.Name()
	require.True(t, ok)
	assert.Equal(t, "layout", name)
}

func TestParseHashArguments(t *testing.T) {
	doc := parse(t, `{{greet name="Ren" loud=true}}`)
	s := doc.Children[0].(*ast.Statement)
	assert.ElementsMatch(t, []string{"name", "loud"}, s.Call.HashKeys)
	lit, ok := s.Call.Hash["loud"].(ast.JSONValue)
	require.True(t, ok)
	assert.Equal(t, true, lit.Value)
}

func TestParseSubExpressionArgument(t *testing.T) {
	doc := parse(t, "{{#if (gt a b)}}x{{/if}}")
	b := doc.Children[0].(*ast.Block)
	require.Len(t, b.Call.Arguments, 1)
	sub, ok := b.Call.Arguments[0].(ast.SubExpr)
	require.True(t, ok)
	name, _ := sub.Call.Name()
	assert.Equal(t, "gt", name)
}

func TestParsePathWithParentRef(t *testing.T) {
	doc := parse(t, "{{../name}}")
	s := doc.Children[0].(*ast.Statement)
	p := s.Call.Target.(*ast.Path)
	assert.EqualValues(t, 1, p.Parents)

	want := []ast.Component{{Kind: ast.CompIdentifier, Value: "name"}}
	if diff := cmp.Diff(want, p.Components); diff != "" {
		t.Errorf("path components mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDottedPathComponents(t *testing.T) {
	doc := parse(t, "{{a.b.c}}")
	s := doc.Children[0].(*ast.Statement)
	p := s.Call.Target.(*ast.Path)

	want := []ast.Component{
		{Kind: ast.CompIdentifier, Value: "a"},
		{Kind: ast.CompIdentifier, Value: "b"},
		{Kind: ast.CompIdentifier, Value: "c"},
	}
	if diff := cmp.Diff(want, p.Components); diff != "" {
		t.Errorf("path components mismatch (-want +got):\n%s", diff)
	}
}

func TestParseThisDotSlashJoinsTrailingIdentifier(t *testing.T) {
	// The lexer folds "./"'s delimiter into the ThisDotSlash token itself,
	// so a trailing identifier must join the same path rather than being
	// dropped and reparsed as a separate call argument.
	doc := parse(t, "{{./foo}}")
	s := doc.Children[0].(*ast.Statement)
	p := s.Call.Target.(*ast.Path)
	assert.True(t, p.ExplicitThis)
	require.Empty(t, s.Call.Arguments)

	want := []ast.Component{
		{Kind: ast.CompThisDotSlash},
		{Kind: ast.CompIdentifier, Value: "foo"},
	}
	if diff := cmp.Diff(want, p.Components); diff != "" {
		t.Errorf("path components mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLocalIdentifier(t *testing.T) {
	doc := parse(t, "{{@index}}")
	s := doc.Children[0].(*ast.Statement)
	p := s.Call.Target.(*ast.Path)
	assert.True(t, p.IsLocal())
}

func TestParseTrimMarkers(t *testing.T) {
	doc := parse(t, "{{~name~}}")
	s := doc.Children[0].(*ast.Statement)
	assert.True(t, s.TrimBefore())
	assert.True(t, s.TrimAfter())
}

func TestParseLink(t *testing.T) {
	doc := parse(t, "[[http://x|label|title]]")
	require.Len(t, doc.Children, 1)
	l, ok := doc.Children[0].(*ast.Link)
	require.True(t, ok)
	assert.Equal(t, "http://x", l.Href)
	assert.Equal(t, "label", l.Label)
	assert.Equal(t, "title", l.Title)
}

func TestParseComment(t *testing.T) {
	doc := parse(t, "{{! note }}")
	require.Len(t, doc.Children, 1)
	_, ok := doc.Children[0].(*ast.Comment)
	assert.True(t, ok)
}

func TestParseRawBlockIsVerbatim(t *testing.T) {
	doc := parse(t, "{{{{raw}}}}{{literal}}{{{{/raw}}}}")
	require.Len(t, doc.Children, 1)
	rb, ok := doc.Children[0].(*ast.RawBlock)
	require.True(t, ok)
	assert.Equal(t, "{{literal}}", rb.Value())
}

func TestParsePathCannotStartWithDelimiter(t *testing.T) {
	_, err := Parse("t", "{{.name}}", Options{})
	require.Error(t, err)
	assert.True(t, braketerr.Is(err, braketerr.UnexpectedPathDelimiter))
}
