// Package render implements bracket's tree-walking renderer: it drives an
// ast.Document through the scope stack and helper registry to produce
// output, per spec.md §4.4.
//
// Grounded on original_source/src/render/context.rs and scope.rs for the
// scope-stack/path-resolution split (delegated to the scope and path
// packages) and on the teacher's error-wrapping pattern
// (parser.FormatError / xerrors.Wrap chains) for surfacing helper errors
// with a source snippet attached.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/escape"
	"github.com/ravenq/bracket/helper"
	"github.com/ravenq/bracket/path"
	"github.com/ravenq/bracket/scope"
)

// Templates is the subset of bracket.Registry the renderer needs to
// resolve a partial by name, kept as an interface here to avoid an import
// cycle (bracket.Registry constructs a Renderer per Render call).
type Templates interface {
	GetTemplate(name string) (doc *ast.Document, source string, ok bool)
}

// Options configures a single render.
type Options struct {
	// Strict makes a missing variable or helper raise VariableNotFound /
	// HelperNotFound instead of silently rendering nothing.
	Strict bool
	// Escape transforms a Statement's stringified value before it is
	// written, unless the Statement used triple-brace syntax. Defaults to
	// escape.HTML.
	Escape func(string) string
	// MaxHelperDepth bounds same-site helper/block-helper recursion before
	// HelperCycle is raised. Defaults to 32.
	MaxHelperDepth int
}

const defaultMaxHelperDepth = 32

type siteKind int

const (
	sitePartial siteKind = iota
	siteHelper
	siteBlockHelper
)

type site struct {
	kind siteKind
	name string
}

type localHelperEntry struct {
	name    string
	prev    helper.Helper
	hadPrev bool
}

// Renderer walks a parsed Document, resolving paths, dispatching helpers,
// and writing output. It implements helper.Renderer so built-in and
// user-registered helpers can call back into it.
type Renderer struct {
	out       io.Writer
	templates Templates
	helpers   *helper.Registry
	opts      Options

	fileName string
	source   string

	stack     *scope.Stack
	callStack []site
	localReg  []localHelperEntry

	partialBlocks []*ast.Block
}

// New creates a Renderer for a single Render call. helpers should already
// be a private copy (see helper.Registry.Clone) -- the Renderer mutates it
// directly for the duration of RegisterLocal/UnregisterLocal.
func New(out io.Writer, templates Templates, helpers *helper.Registry, fileName, source string, data any, opts Options) *Renderer {
	if opts.Escape == nil {
		opts.Escape = escape.HTML
	}
	if opts.MaxHelperDepth == 0 {
		opts.MaxHelperDepth = defaultMaxHelperDepth
	}
	return &Renderer{
		out:       out,
		templates: templates,
		helpers:   helpers,
		opts:      opts,
		fileName:  fileName,
		source:    source,
		stack:     scope.NewStack(data),
	}
}

// Render renders doc's top-level children to the Renderer's output sink.
func (r *Renderer) Render(doc *ast.Document) error {
	return r.renderNodes(doc.Children, false, false)
}

// ---- node walking & the trim protocol ----

// renderNodes walks a sibling list applying spec.md §4.4's trim protocol:
// a node's leading whitespace is trimmed when either its own open tag
// requested it or its predecessor's close tag did (and symmetrically for
// trailing whitespace), with leadTrim/tailTrim carrying the enclosing
// block's own open/close trim markers in across the list boundary.
func (r *Renderer) renderNodes(nodes []ast.Node, leadTrim, tailTrim bool) error {
	n := len(nodes)
	for i, node := range nodes {
		before := node.TrimBefore()
		if i == 0 {
			before = before || leadTrim
		} else {
			before = before || nodes[i-1].TrimAfter()
		}
		after := node.TrimAfter()
		if i == n-1 {
			after = after || tailTrim
		} else {
			after = after || nodes[i+1].TrimBefore()
		}
		if err := r.renderNode(node, before, after); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderNode(node ast.Node, trimBefore, trimAfter bool) error {
	switch n := node.(type) {
	case *ast.Text:
		return r.writeTrimmed(n.Value(), trimBefore, trimAfter)
	case *ast.RawBlock:
		return r.writeTrimmed(n.Value(), trimBefore, trimAfter)
	case *ast.RawStatement:
		return r.writeTrimmed(n.Text, trimBefore, trimAfter)
	case *ast.RawComment, *ast.Comment:
		return nil
	case *ast.Link:
		return r.renderLink(n)
	case *ast.Statement:
		return r.renderStatement(n)
	case *ast.Block:
		return r.renderBlock(n)
	default:
		return r.errAt(braketerr.Message, node.Span().Start, "render: unsupported node kind %v", node.Kind())
	}
}

func (r *Renderer) writeTrimmed(s string, trimBefore, trimAfter bool) error {
	if trimBefore {
		s = strings.TrimLeft(s, " \t\r\n")
	}
	if trimAfter {
		s = strings.TrimRight(s, " \t\r\n")
	}
	if s == "" {
		return nil
	}
	return r.write(s)
}

func (r *Renderer) write(s string) error {
	if s == "" {
		return nil
	}
	_, err := io.WriteString(r.out, s)
	return err
}

func (r *Renderer) renderLink(l *ast.Link) error {
	label := l.Label
	if label == "" {
		label = l.Href
	}
	var sb strings.Builder
	sb.WriteString(`<a href="`)
	sb.WriteString(r.opts.Escape(l.Href))
	sb.WriteString(`"`)
	if l.Title != "" {
		sb.WriteString(` title="`)
		sb.WriteString(r.opts.Escape(l.Title))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	sb.WriteString(r.opts.Escape(label))
	sb.WriteString("</a>")
	return r.write(sb.String())
}

// ---- statements & blocks ----

func (r *Renderer) renderStatement(s *ast.Statement) error {
	if s.Call.Partial {
		return r.renderPartial(s.Call, nil)
	}
	if p, ok := s.Call.Target.(*ast.Path); ok && isPartialBlockPath(p) {
		return r.renderPartialBlockLocal()
	}
	v, err := r.evalCall(s.Call, nil)
	if err != nil {
		return err
	}
	return r.writeValue(v, s.Call.Escaped)
}

func (r *Renderer) renderBlock(b *ast.Block) error {
	if b.Call.Partial {
		return r.renderPartial(b.Call, b)
	}
	if _, ok := b.Call.Name(); !ok {
		if _, isSub := b.Call.Target.(*ast.Call); isSub {
			return r.errAt(braketerr.BlockTargetSubExpr, b.OpenSpan.Start, "a block target must be a simple identifier, not a sub-expression")
		}
	}
	v, err := r.evalCall(b.Call, b)
	if err != nil {
		return err
	}
	return r.writeValue(v, b.Call.Escaped)
}

func (r *Renderer) writeValue(v any, escaped bool) error {
	if v == nil {
		return nil
	}
	s := r.Stringify(v)
	if s == "" {
		return nil
	}
	if escaped {
		s = r.opts.Escape(s)
	}
	return r.write(s)
}

// Template renders a block's primary body, honoring its own open tag's
// trailing trim marker and whatever closes it (the first else/else-if
// clause's open trim, or the block's own close tag).
func (r *Renderer) Template(inner *ast.Block) error {
	if inner == nil {
		return nil
	}
	tail := inner.CloseTrimBefore
	if len(inner.Conditions) > 0 {
		tail = inner.Conditions[0].OpenTrimBefore
	}
	return r.renderNodes(inner.Children, inner.OpenTrimAfter, tail)
}

// Inverse renders the first matching else-if clause, or the trailing bare
// else, whichever applies; a no-op if neither exists or none matches.
func (r *Renderer) Inverse(inner *ast.Block) error {
	if inner == nil {
		return nil
	}
	for i, cond := range inner.Conditions {
		tail := inner.CloseTrimBefore
		if i+1 < len(inner.Conditions) {
			tail = inner.Conditions[i+1].OpenTrimBefore
		}
		if cond.Expr == nil {
			return r.renderNodes(cond.Children, cond.OpenTrimAfter, tail)
		}
		v, err := r.Eval(cond.Expr)
		if err != nil {
			return err
		}
		if path.Truthy(v) {
			return r.renderNodes(cond.Children, cond.OpenTrimAfter, tail)
		}
	}
	return nil
}

// ---- partials ----

func (r *Renderer) renderPartial(call *ast.Call, block *ast.Block) error {
	name, err := r.partialName(call)
	if err != nil {
		return err
	}

	if name == "@partial-block" {
		return r.renderPartialBlockLocal()
	}

	doc, source, ok := r.templates.GetTemplate(name)
	if !ok {
		return r.errAt(braketerr.PartialNotFound, call.OpenSpan.Start, "partial %q not found", name)
	}

	if err := r.pushSite(sitePartial, name); err != nil {
		return err
	}
	defer r.popSite()

	args, err := r.evalArgs(call.Arguments)
	if err != nil {
		return err
	}
	hash, err := r.evalHash(call)
	if err != nil {
		return err
	}

	baseVal, hasBase := r.stack.Top().Base()
	if len(args) > 0 {
		baseVal, hasBase = args[0], true
	}

	h := r.PushScope(baseVal, hasBase)
	for k, v := range hash {
		h.SetLocal("@"+k, v)
	}
	defer r.PopScope()

	if block != nil {
		r.partialBlocks = append(r.partialBlocks, block)
		defer func() { r.partialBlocks = r.partialBlocks[:len(r.partialBlocks)-1] }()
	}

	prevSource, prevFile := r.source, r.fileName
	r.source, r.fileName = source, name
	defer func() { r.source, r.fileName = prevSource, prevFile }()

	return r.renderNodes(doc.Children, false, false)
}

// renderPartialBlockLocal renders the fallback body a `{{#> name}}` block
// partial was invoked with, when the named partial itself references
// `{{> @partial-block}}`. The current top of partialBlocks belongs to the
// *enclosing* invocation, so it is popped (and restored afterward) while
// rendering it, preventing a partial that references its own
// @partial-block from recursing into itself.
func (r *Renderer) renderPartialBlockLocal() error {
	if len(r.partialBlocks) == 0 {
		return nil
	}
	block := r.partialBlocks[len(r.partialBlocks)-1]
	r.partialBlocks = r.partialBlocks[:len(r.partialBlocks)-1]
	defer func() { r.partialBlocks = append(r.partialBlocks, block) }()
	return r.Template(block)
}

// isPartialBlockPath reports whether p is exactly the bare local
// identifier `@partial-block`, the one local name the spec gives
// renderer-level meaning to (spec.md §8 scenario 9; `original_source`'s
// partial_block test): bracket special-cases it whether it is written as
// a plain statement (`{{@partial-block}}`) or as a partial invocation
// (`{{> @partial-block}}`), rather than resolving it as an ordinary
// unset local variable.
func isPartialBlockPath(p *ast.Path) bool {
	return len(p.Components) == 1 && p.Components[0].Kind == ast.CompLocalIdentifier &&
		p.Components[0].Value == "partial-block" && p.Parents == 0 && !p.ExplicitThis && !p.IsRoot
}

func (r *Renderer) partialName(call *ast.Call) (string, error) {
	if p, ok := call.Target.(*ast.Path); ok {
		if name, simple := p.SimpleName(); simple {
			return name, nil
		}
		return pathLabel(p), nil
	}
	sub, ok := call.Target.(*ast.Call)
	if !ok {
		return "", r.errAt(braketerr.Message, call.OpenSpan.Start, "malformed partial target")
	}
	v, err := r.evalCall(sub, nil)
	if err != nil {
		return "", err
	}
	return r.Stringify(v), nil
}

// ---- call evaluation ----

// Eval resolves a ParamValue (a JSON literal, a path reference, or a
// sub-expression) to a Value.
func (r *Renderer) Eval(v ast.ParamValue) (any, error) {
	switch pv := v.(type) {
	case ast.JSONValue:
		return pv.Value, nil
	case ast.PathRef:
		val, _ := path.Resolve(pv.Path, r.stack)
		return val, nil
	case ast.SubExpr:
		return r.evalCall(pv.Call, nil)
	default:
		return nil, r.errAt(braketerr.Message, 0, "render: unknown parameter value type %T", v)
	}
}

// evalCall dispatches a Call: a registered helper by simple-identifier (or
// stringified sub-expression) name takes precedence, falling back to path
// resolution, and finally to helperMissing/blockHelperMissing. block is
// non-nil only for a block's own call (`{{#name}}`), selecting the
// blockHelperMissing fallback and letting helpers call back into
// Template/Inverse.
func (r *Renderer) evalCall(call *ast.Call, block *ast.Block) (any, error) {
	name, named, err := r.resolveCallName(call)
	if err != nil {
		return nil, err
	}
	if named {
		if h, ok := r.helpers.Get(name); ok {
			return r.invokeHelper(name, h, call, block)
		}
	}
	if p, isPath := call.Target.(*ast.Path); isPath {
		if v, found := path.Resolve(p, r.stack); found {
			return v, nil
		}
	}
	return r.missingCallFallback(call, block, name, named)
}

// resolveCallName reports the name a Call dispatches helpers under: the
// target's simple identifier, or (per the Open Questions decision in
// SPEC_FULL.md) a sub-expression target's stringified result.
func (r *Renderer) resolveCallName(call *ast.Call) (string, bool, error) {
	if name, ok := call.Name(); ok {
		return name, true, nil
	}
	if sub, ok := call.Target.(*ast.Call); ok {
		v, err := r.evalCall(sub, nil)
		if err != nil {
			return "", false, err
		}
		return r.Stringify(v), true, nil
	}
	return "", false, nil
}

func (r *Renderer) missingCallFallback(call *ast.Call, block *ast.Block, name string, named bool) (any, error) {
	fallbackName := "helperMissing"
	if block != nil {
		fallbackName = "blockHelperMissing"
	}
	if h, ok := r.helpers.Get(fallbackName); ok {
		return r.invokeHelper(fallbackName, h, call, block)
	}
	if !r.opts.Strict {
		return nil, nil
	}
	if _, isPath := call.Target.(*ast.Path); !isPath {
		return nil, r.errAt(braketerr.HelperNotFound, call.OpenSpan.Start, "helper %q not found", name)
	}
	label := name
	if !named {
		label = describeCallTarget(call.Target)
	}
	return nil, r.errAt(braketerr.VariableNotFound, call.OpenSpan.Start, "%q is not defined", label)
}

func (r *Renderer) invokeHelper(name string, h helper.Helper, call *ast.Call, block *ast.Block) (any, error) {
	kind := siteHelper
	if block != nil {
		kind = siteBlockHelper
	}
	if err := r.pushSite(kind, name); err != nil {
		return nil, err
	}
	defer r.popSite()

	args, err := r.evalArgs(call.Arguments)
	if err != nil {
		return nil, err
	}
	hash, err := r.evalHash(call)
	if err != nil {
		return nil, err
	}

	ctx := helper.NewContext(name, args, hash, call.OpenSpan.Start)
	v, err := h.Call(r, ctx, block)
	if err != nil {
		return nil, r.wrapHelperErr(call, err)
	}
	return v, nil
}

func (r *Renderer) evalArgs(params []ast.ParamValue) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		v, err := r.Eval(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *Renderer) evalHash(call *ast.Call) (map[string]any, error) {
	if len(call.Hash) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(call.Hash))
	for _, k := range call.HashKeys {
		v, err := r.Eval(call.Hash[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ---- cycle detection ----

// pushSite records a call-stack entry, raising PartialCycle on any
// reappearance of a partial site, or HelperCycle once a (non-partial) site
// reappears MaxHelperDepth times -- bounding unbounded recursion while
// still allowing ordinary bounded recursive helper use.
func (r *Renderer) pushSite(kind siteKind, name string) error {
	count := 0
	for _, s := range r.callStack {
		if s.kind == kind && s.name == name {
			count++
		}
	}
	switch kind {
	case sitePartial:
		if count > 0 {
			return r.errAt(braketerr.PartialCycle, 0, "partial cycle detected: %q", name)
		}
	default:
		if count >= r.opts.MaxHelperDepth {
			return r.errAt(braketerr.HelperCycle, 0, "helper cycle detected: %q exceeded depth %d", name, r.opts.MaxHelperDepth)
		}
	}
	r.callStack = append(r.callStack, site{kind: kind, name: name})
	return nil
}

func (r *Renderer) popSite() {
	r.callStack = r.callStack[:len(r.callStack)-1]
}

// ---- helper.Renderer plumbing ----

type scopeHandle struct{ s *scope.Scope }

func (h scopeHandle) SetLocal(name string, v any) { h.s.SetLocal(name, v) }

func (r *Renderer) PushScope(base any, hasBase bool) helper.ScopeHandle {
	s := scope.New()
	if hasBase {
		s.SetBase(base)
	}
	r.stack.Push(s)
	return scopeHandle{s: s}
}

func (r *Renderer) PopScope() { r.stack.Pop() }

// RegisterLocal scopes a helper registration to the current render: it
// mutates the Renderer's private (already-cloned) Registry directly,
// saving whatever was previously registered under name so
// UnregisterLocal can restore it once the enclosing block helper's
// invocation returns.
func (r *Renderer) RegisterLocal(name string, h helper.Helper) {
	prev, hadPrev := r.helpers.Get(name)
	r.localReg = append(r.localReg, localHelperEntry{name: name, prev: prev, hadPrev: hadPrev})
	r.helpers.Insert(name, h)
}

func (r *Renderer) UnregisterLocal(name string) {
	for i := len(r.localReg) - 1; i >= 0; i-- {
		if r.localReg[i].name != name {
			continue
		}
		e := r.localReg[i]
		r.localReg = append(r.localReg[:i], r.localReg[i+1:]...)
		if e.hadPrev {
			r.helpers.Insert(name, e.prev)
		} else {
			r.helpers.Remove(name)
		}
		return
	}
}

func (r *Renderer) Write(s string) error { return r.write(s) }

// Stringify renders a Value to its string form the way a Statement would,
// before any escaping is applied.
func (r *Renderer) Stringify(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case float64:
		return formatNumber(tv)
	case int:
		return strconv.Itoa(tv)
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprint(tv)
		}
		return string(b)
	}
}

func formatNumber(f float64) string {
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ---- error construction ----

func (r *Renderer) errAt(kind braketerr.Kind, byteOffset int, format string, args ...any) error {
	return &braketerr.Error{
		Kind: kind,
		Info: braketerr.Info{
			Source:   r.source,
			FileName: r.fileName,
			Line:     lineNumber(r.source, byteOffset),
			Byte:     byteOffset,
		},
		Message: fmt.Sprintf(format, args...),
	}
}

// wrapHelperErr backfills position info on an error surfaced from inside a
// Helper.Call (e.g. via Context.Arity, which only knows its own byte
// offset) with the Renderer's current source/file, and wraps any other
// error kind as braketerr.Message so every render failure is a
// *braketerr.Error.
func (r *Renderer) wrapHelperErr(call *ast.Call, err error) error {
	var be *braketerr.Error
	if xerrors.As(err, &be) {
		if be.Info.Source == "" {
			be.Info.Source = r.source
			be.Info.FileName = r.fileName
			be.Info.Line = lineNumber(r.source, call.OpenSpan.Start)
			be.Info.Byte = call.OpenSpan.Start
		}
		return be
	}
	return braketerr.Wrap(braketerr.Message, braketerr.Info{
		Source:   r.source,
		FileName: r.fileName,
		Line:     lineNumber(r.source, call.OpenSpan.Start),
		Byte:     call.OpenSpan.Start,
	}, err.Error(), err)
}

func lineNumber(source string, byteOffset int) int {
	if byteOffset < 0 {
		byteOffset = 0
	}
	if byteOffset > len(source) {
		byteOffset = len(source)
	}
	return 1 + strings.Count(source[:byteOffset], "\n")
}

func describeCallTarget(t ast.CallTarget) string {
	switch v := t.(type) {
	case *ast.Path:
		return pathLabel(v)
	case *ast.Call:
		return "(sub-expression)"
	default:
		return "?"
	}
}

func pathLabel(p *ast.Path) string {
	var sb strings.Builder
	if p.IsRoot {
		sb.WriteString("@root")
	}
	for i := uint8(0); i < p.Parents; i++ {
		sb.WriteString("../")
	}
	for i, c := range p.Components {
		if i > 0 {
			sb.WriteString(".")
		}
		switch c.Kind {
		case ast.CompThisKeyword:
			sb.WriteString("this")
		case ast.CompThisDotSlash:
			sb.WriteString("./")
		case ast.CompLocalIdentifier:
			sb.WriteString("@")
			sb.WriteString(c.Value)
		default:
			sb.WriteString(c.Value)
		}
	}
	return sb.String()
}
