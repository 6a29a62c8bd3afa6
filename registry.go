// Package bracket implements a Handlebars-compatible template engine:
// parse templates once into a Registry, then Render them repeatedly
// against JSON-shaped data. See spec.md §6 for the template syntax and
// this package's external interface.
package bracket

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/escape"
	"github.com/ravenq/bracket/helper"
	"github.com/ravenq/bracket/parser"
	"github.com/ravenq/bracket/render"
)

type namedTemplate struct {
	source string
	doc    *ast.Document
}

// Registry holds parsed templates and the helper set used to render them.
// It is safe for concurrent Render/Once calls once construction (loading
// templates, registering helpers) has settled -- each Render clones the
// helper table (helper.Registry.Clone) so a render's local helper
// registrations never leak back, and never mutates the Registry itself.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*namedTemplate
	helpers   *helper.Registry

	// Escape transforms a Statement's stringified value before writing it,
	// unless the statement used triple-brace syntax. Defaults to
	// escape.HTML.
	Escape func(string) string
	// Strict makes a missing variable or helper raise an error instead of
	// rendering nothing.
	Strict bool
}

// New creates an empty Registry with bracket's built-in helpers registered.
func New() *Registry {
	return &Registry{
		templates: map[string]*namedTemplate{},
		helpers:   helper.New(),
		Escape:    escape.HTML,
	}
}

// Parse compiles source under name into a syntax tree without registering
// it anywhere -- the building block RegisterTemplate and Once are built
// on.
func Parse(name, source string) (*ast.Document, error) {
	return parser.Parse(name, source, parser.Options{Links: true})
}

// RegisterTemplate parses source and registers it under name, replacing
// any existing template of the same name.
func (r *Registry) RegisterTemplate(name, source string) error {
	doc, err := Parse(name, source)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = &namedTemplate{source: source, doc: doc}
	return nil
}

// UnregisterTemplate removes a previously-registered template. A no-op if
// name was never registered.
func (r *Registry) UnregisterTemplate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, name)
}

// GetTemplate returns a registered template's parsed document and source
// text. It also implements render.Templates, letting the render package
// resolve partials without importing this package.
func (r *Registry) GetTemplate(name string) (*ast.Document, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, "", false
	}
	return t.doc, t.source, true
}

// Helpers exposes the Registry's helper table for mutation (Insert/Remove):
// changes are visible to every subsequent Render/Once call.
func (r *Registry) Helpers() *helper.Registry {
	return r.helpers
}

// TemplateNames returns every currently-registered template name, in no
// particular order.
func (r *Registry) TemplateNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

func (r *Registry) snapshot() (*helper.Registry, func(string) string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.helpers.Clone(), r.Escape, r.Strict
}

// Render looks up name and renders it against data to w.
func (r *Registry) Render(w io.Writer, name string, data any) error {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return &braketerr.Error{Kind: braketerr.TemplateNotFound, Message: fmt.Sprintf("template %q not found", name)}
	}
	helpers, esc, strict := r.snapshot()
	rnd := render.New(w, r, helpers, name, t.source, data, render.Options{Strict: strict, Escape: esc})
	return rnd.Render(t.doc)
}

// Once parses source and renders it once against data without
// registering it, for one-shot templates -- but with access to every
// partial already registered in r.
func (r *Registry) Once(w io.Writer, name, source string, data any) error {
	doc, err := Parse(name, source)
	if err != nil {
		return err
	}
	helpers, esc, strict := r.snapshot()
	rnd := render.New(w, r, helpers, name, source, data, render.Options{Strict: strict, Escape: esc})
	return rnd.Render(doc)
}

// Lint statically checks a registered template beyond what parsing alone
// catches: every partial reference with a statically-known name (a simple
// identifier, as opposed to a sub-expression resolved only at render time)
// must name a template already registered in r.
func (r *Registry) Lint(name string) error {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return &braketerr.Error{Kind: braketerr.TemplateNotFound, Message: fmt.Sprintf("template %q not found", name)}
	}

	var missing []string
	lintNodes(t.doc.Children, r, &missing)
	if len(missing) == 0 {
		return nil
	}
	return &braketerr.Error{
		Kind:    braketerr.PartialNotFound,
		Info:    braketerr.Info{Source: t.source, FileName: name},
		Message: fmt.Sprintf("template %q references undefined partial(s): %s", name, strings.Join(missing, ", ")),
	}
}

func lintNodes(nodes []ast.Node, r *Registry, missing *[]string) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *ast.Statement:
			lintCall(v.Call, r, missing)
		case *ast.Block:
			lintCall(v.Call, r, missing)
			lintNodes(v.Children, r, missing)
			for _, c := range v.Conditions {
				lintNodes(c.Children, r, missing)
			}
		}
	}
}

func lintCall(c *ast.Call, r *Registry, missing *[]string) {
	if c == nil || !c.Partial {
		return
	}
	p, ok := c.Target.(*ast.Path)
	if !ok {
		return // sub-expression target: resolved only at render time
	}
	name, simple := p.SimpleName()
	if !simple || name == "@partial-block" {
		return
	}
	if _, _, ok := r.GetTemplate(name); !ok {
		*missing = append(*missing, name)
	}
}
