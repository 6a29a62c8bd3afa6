package helper

import "github.com/ravenq/bracket/ast"

// Helper is bracket's dyn-dispatched helper contract (spec.md §9): given
// the active Renderer, the evaluated Context, and (for block helpers) the
// enclosing Block node, it returns a Value to stringify-and-write, or nil
// if it wrote output itself (e.g. by calling r.Template/r.Inverse).
type Helper interface {
	Call(r Renderer, ctx *Context, block *ast.Block) (any, error)
}

// Func adapts a plain function to the Helper interface, for simple
// value-producing helpers that never need the block argument.
type Func func(r Renderer, ctx *Context) (any, error)

func (f Func) Call(r Renderer, ctx *Context, _ *ast.Block) (any, error) { return f(r, ctx) }

// Registry is the cloneable, by-name helper table from spec.md §4.5. The
// zero value is not usable; use New.
type Registry struct {
	entries map[string]Helper
}

// New builds a Registry pre-populated with bracket's built-in helpers.
func New() *Registry {
	r := &Registry{entries: map[string]Helper{}}
	registerBuiltins(r)
	return r
}

// Insert registers h under name, replacing any existing registration.
func (r *Registry) Insert(name string, h Helper) {
	r.entries[name] = h
}

// Remove unregisters name, returning the previous Helper if any.
func (r *Registry) Remove(name string) (Helper, bool) {
	h, ok := r.entries[name]
	delete(r.entries, name)
	return h, ok
}

// Get looks up a registered helper by name.
func (r *Registry) Get(name string) (Helper, bool) {
	h, ok := r.entries[name]
	return h, ok
}

// Clone returns a shallow copy whose map is independent of the receiver's,
// so a block helper's local registrations (via RegisterLocal) don't leak
// back into the parent registry once its invocation returns.
func (r *Registry) Clone() *Registry {
	cp := make(map[string]Helper, len(r.entries))
	for k, v := range r.entries {
		cp[k] = v
	}
	return &Registry{entries: cp}
}
