// Package ast defines the bracket template syntax tree.
//
// Every node borrows its textual content from a single source string via a
// byte Span; the tree never copies source text except for decoded string
// literals. This mirrors the borrowed-slice discipline spec.md calls for,
// and the node-kind/BaseNode split used by pgavlin/yomlette's ast package
// (a Kind() discriminator plus per-kind structs, rather than one fat
// struct with optional fields for every node shape).
package ast

import "github.com/ravenq/bracket/token"

// Kind discriminates the Node sum type.
type Kind int

const (
	KindDocument Kind = iota
	KindText
	KindStatement
	KindBlock
	KindRawBlock
	KindRawStatement
	KindRawComment
	KindComment
	KindLink
)

// Node is the common interface implemented by every AST node kind.
type Node interface {
	Kind() Kind
	Span() token.Span
	// TrimBefore/TrimAfter report whether this node's open/close tags
	// requested whitespace trimming on the adjacent boundary, driving the
	// renderer's trim protocol (spec.md §4.4).
	TrimBefore() bool
	TrimAfter() bool
}

// base holds the fields common to every node.
type base struct {
	span       token.Span
	trimBefore bool
	trimAfter  bool
}

func (b *base) Span() token.Span   { return b.span }
func (b *base) TrimBefore() bool   { return b.trimBefore }
func (b *base) TrimAfter() bool    { return b.trimAfter }

// Document is the root of a parsed template: an ordered sequence of
// children.
type Document struct {
	base
	Children []Node
}

func (*Document) Kind() Kind { return KindDocument }

func NewDocument(span token.Span, children []Node) *Document {
	return &Document{base: base{span: span}, Children: children}
}

// Text is a literal run of output text.
type Text struct {
	base
	Source string // the full template source, for slicing
}

func (*Text) Kind() Kind { return KindText }

// Value returns the text's string value -- the exact source slice spanned
// by the node.
func (t *Text) Value() string { return t.Source[t.span.Start:t.span.End] }

func NewText(span token.Span, source string) *Text {
	return &Text{base: base{span: span}, Source: source}
}

// Statement is a `{{expr}}` interpolation.
type Statement struct {
	base
	Call *Call
}

func (*Statement) Kind() Kind { return KindStatement }

func NewStatement(span token.Span, call *Call, trimBefore, trimAfter bool) *Statement {
	return &Statement{base: base{span: span, trimBefore: trimBefore, trimAfter: trimAfter}, Call: call}
}

// Condition is an else / else-if clause of a Block. A nil Expr denotes a
// pure `{{else}}`. A non-nil Expr holds whatever an else-if's condition
// parsed as: a JSON literal (`{{else if true}}`), a path/helper call
// (`{{else if eq x 1}}`), or a sub-expression (`{{else if (eq x 1)}}`) --
// the same three shapes parseParamValue accepts for an ordinary argument,
// evaluated the same way via Renderer.Eval.
//
// OpenTrimBefore/OpenTrimAfter are this clause's own `{{~else}}`/`{{else~}}`
// trim markers: Before trims the trailing whitespace of the PRECEDING
// clause's children, After trims the leading whitespace of THIS clause's
// own children. CloseTrimBefore is the leading trim marker of whichever tag
// closes THIS clause's children -- the next else/else-if clause's open tag,
// or, for the chain's last clause, the final `{{~/name}}` close tag.
type Condition struct {
	Expr            ParamValue
	Children        []Node
	CloseSpan       *token.Span
	OpenTrimBefore  bool
	OpenTrimAfter   bool
	CloseTrimBefore bool
}

// Block is a `{{#name}} ... {{/name}}` structure, possibly carrying a chain
// of else/else-if Conditions.
//
// base.trimBefore/trimAfter are the EXTERNAL trims visible to sibling
// nodes: trimBefore from the open tag's leading `~`, trimAfter from the
// final close tag's trailing `~`. OpenTrimAfter/CloseTrimBefore are
// INTERNAL: the open tag's own trailing `~` (trims the leading whitespace
// of Children) and the close tag's own leading `~` (trims the trailing
// whitespace of Children, when there are no Conditions).
type Block struct {
	base
	OpenSpan        token.Span
	CloseSpan       *token.Span
	Call            *Call
	Children        []Node
	Conditions      []*Condition
	OpenTrimAfter   bool
	CloseTrimBefore bool
}

func (*Block) Kind() Kind { return KindBlock }

func NewBlock(span, openSpan token.Span, call *Call) *Block {
	return &Block{base: base{span: span}, OpenSpan: openSpan, Call: call}
}

// Finalize sets a Block's full span and trim flags once its children and
// closing tag (or final else/else-if clause) have been parsed. The parser
// constructs a Block before it knows its extent, so this is called once
// at the end of block parsing rather than threaded through NewBlock.
func (b *Block) Finalize(span token.Span, trimBefore, trimAfter bool) {
	b.span = span
	b.trimBefore = trimBefore
	b.trimAfter = trimAfter
}

// RawBlock is a `{{{{raw}}}} ... {{{{/raw}}}}` node: its body is copied
// verbatim with no parsing.
type RawBlock struct {
	base
	Source string
}

func (*RawBlock) Kind() Kind { return KindRawBlock }
func (r *RawBlock) Value() string { return r.Source[r.span.Start:r.span.End] }

func NewRawBlock(span token.Span, source string) *RawBlock {
	return &RawBlock{base: base{span: span}, Source: source}
}

// RawStatement is a `\{{ ... }}` / `\{{{ ... }}}` literal-brace escape.
// Its Text is the literal text to emit, braces included.
type RawStatement struct {
	base
	Text string
}

func (*RawStatement) Kind() Kind { return KindRawStatement }

func NewRawStatement(span token.Span, text string) *RawStatement {
	return &RawStatement{base: base{span: span}, Text: text}
}

// RawComment is a `{{!-- ... --}}` comment.
type RawComment struct {
	base
}

func (*RawComment) Kind() Kind { return KindRawComment }

func NewRawComment(span token.Span) *RawComment {
	return &RawComment{base: base{span: span}}
}

// Comment is a `{{! ... }}` comment.
type Comment struct {
	base
}

func (*Comment) Kind() Kind { return KindComment }

func NewComment(span token.Span) *Comment {
	return &Comment{base: base{span: span}}
}

// Link is an optional `[[href|label|title]]` node.
type Link struct {
	base
	Href  string
	Label string
	Title string
}

func (*Link) Kind() Kind { return KindLink }

func NewLink(span token.Span, href, label, title string) *Link {
	return &Link{base: base{span: span}, Href: href, Label: label, Title: title}
}

// ---- Calls, targets, paths, parameters ----

// CallTarget is either a Path or a nested sub-expression Call.
type CallTarget interface {
	isCallTarget()
}

// Call represents `name arg1 arg2 key=val` in any position: a statement, a
// block opener, a partial, or a sub-expression.
type Call struct {
	Target    CallTarget
	Arguments []ParamValue
	HashKeys  []string // hash keys in source order
	Hash      map[string]ParamValue
	Partial   bool
	Escaped   bool // false for {{{ }}} / unescaped output
	OpenSpan  token.Span
	CloseSpan *token.Span
}

func (c *Call) isCallTarget() {}

// Name returns the call target's simple identifier name, if it has one.
func (c *Call) Name() (string, bool) {
	if p, ok := c.Target.(*Path); ok {
		return p.SimpleName()
	}
	return "", false
}

// ComponentKind discriminates Path components.
type ComponentKind int

const (
	CompThisKeyword ComponentKind = iota
	CompThisDotSlash
	CompParentRef
	CompIdentifier
	CompLocalIdentifier
	CompDelimiter
	CompArrayAccess
)

// Component is a single segment of a Path.
type Component struct {
	Kind  ComponentKind
	Value string // identifier/local-identifier/array-index text
}

// Path is a parsed variable reference: `../foo.bar`, `@index`, `this`,
// `@root.x`, `[0]`, etc.
type Path struct {
	Components   []Component
	Parents      uint8
	ExplicitThis bool
	IsRoot       bool
}

func (*Path) isCallTarget() {}

// IsSimple reports whether the path has exactly one Identifier component
// and no parents/this/local/root markers -- a "simple identifier" in
// spec.md's terms.
func (p *Path) IsSimple() bool {
	return len(p.Components) == 1 &&
		p.Components[0].Kind == CompIdentifier &&
		p.Parents == 0 && !p.ExplicitThis && !p.IsRoot
}

// SimpleName returns the path's identifier text if it IsSimple.
func (p *Path) SimpleName() (string, bool) {
	if !p.IsSimple() {
		return "", false
	}
	return p.Components[0].Value, true
}

// IsLocal reports whether the path starts with a `@name` local identifier.
func (p *Path) IsLocal() bool {
	return len(p.Components) > 0 && p.Components[0].Kind == CompLocalIdentifier
}

// ParamValue is an argument or hash value: a JSON literal, a path
// reference, or a sub-expression call.
type ParamValue interface {
	isParamValue()
}

// JSONValue wraps a decoded JSON literal (number, bool, string, or null)
// used as a call argument.
type JSONValue struct {
	Value any
}

func (JSONValue) isParamValue() {}

// PathRef wraps a Path used as a call argument.
type PathRef struct {
	Path *Path
}

func (PathRef) isParamValue() {}

// SubExpr wraps a nested Call, `(helper arg...)`, used as a call argument.
type SubExpr struct {
	Call *Call
}

func (SubExpr) isParamValue() {}
