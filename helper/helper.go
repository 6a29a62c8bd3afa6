// Package helper implements bracket's helper registry and built-in
// helpers (spec.md §4.5), grounded file-by-file on
// original_source/src/helper/*.rs.
package helper

import (
	"fmt"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
)

// Renderer is the subset of *render.Renderer a Helper needs to call back
// into, kept as an interface here to avoid an import cycle between
// helper and render (render.Renderer implements it).
type Renderer interface {
	// Template renders a block's primary body into the current output sink.
	Template(inner *ast.Block) error
	// Inverse selects and renders the first matching else-if clause, or the
	// trailing bare else, whichever applies; it is a no-op if neither exists.
	Inverse(inner *ast.Block) error
	// PushScope/PopScope manage the scope stack around a block invocation.
	PushScope(base any, hasBase bool) ScopeHandle
	PopScope()
	// RegisterLocal/UnregisterLocal scope a helper to the caller's own
	// invocation.
	RegisterLocal(name string, h Helper)
	UnregisterLocal(name string)
	// Write emits already-escaped-or-not text to the output sink.
	Write(s string) error
	// Stringify renders a Value to its string form the way a Statement would.
	Stringify(v any) string
	// Eval resolves a ParamValue (path, json literal, or sub-expression) to
	// a Value.
	Eval(v ast.ParamValue) (any, error)
}

// ScopeHandle is an opaque handle returned by PushScope, used to set
// `@`-prefixed locals on the pushed frame before rendering.
type ScopeHandle interface {
	SetLocal(name string, v any)
}

// Context exposes a helper invocation's name, evaluated arguments, and
// evaluated hash, plus arity/type assertions (spec.md §4.4).
type Context struct {
	Name      string
	Arguments []any
	Hash      map[string]any

	// PropName/PropValue/HasProp are not filled in by the renderer: a
	// helperMissing/blockHelperMissing fallback is invoked with Name set to
	// the fallback's own name plus the call's evaluated arguments and hash,
	// and these three fields keep their zero values.
	PropName  string
	PropValue any
	HasProp   bool

	pos int // byte position for error reporting
}

// NewContext builds a Context from already-evaluated arguments.
func NewContext(name string, args []any, hash map[string]any, pos int) *Context {
	return &Context{Name: name, Arguments: args, Hash: hash, pos: pos}
}

func (c *Context) err(kind braketerr.Kind, format string, args ...interface{}) error {
	return braketerr.New(kind, braketerr.Info{Byte: c.pos}, fmt.Sprintf(format, args...))
}

// Arity requires exactly n arguments.
func (c *Context) Arity(n int) error {
	if len(c.Arguments) != n {
		return c.err(braketerr.ArityExact, "helper %q requires exactly %d argument(s), got %d", c.Name, n, len(c.Arguments))
	}
	return nil
}

// ArityRange requires between min and max (inclusive) arguments.
func (c *Context) ArityRange(min, max int) error {
	if len(c.Arguments) < min || len(c.Arguments) > max {
		return c.err(braketerr.ArityRange, "helper %q requires %d-%d arguments, got %d", c.Name, min, max, len(c.Arguments))
	}
	return nil
}

// TryGet fetches argument i and asserts it is present.
func (c *Context) TryGet(i int) (any, error) {
	if i < 0 || i >= len(c.Arguments) {
		return nil, c.err(braketerr.TypeAssert, "helper %q expected an argument at index %d", c.Name, i)
	}
	return c.Arguments[i], nil
}

// TryGetString fetches argument i and asserts it is a string.
func (c *Context) TryGetString(i int) (string, error) {
	v, err := c.TryGet(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", c.err(braketerr.ArgumentTypeString, "helper %q expected argument %d to be a string", c.Name, i)
	}
	return s, nil
}
