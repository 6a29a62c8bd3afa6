// Package path resolves a parsed ast.Path against a scope.Stack, per the
// lookup rules in spec.md §4.4.
//
// Grounded on original_source/src/render/context.rs's path-resolution
// walk (root / explicit-this / local / parents / default precedence).
package path

import (
	"strconv"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/scope"
)

// Lookup indexes into a decoded JSON value: by key for an object, by
// decimal index for an array. Missing intermediates yield (nil, false).
func Lookup(v any, key string) (any, bool) {
	switch tv := v.(type) {
	case map[string]any:
		r, ok := tv[key]
		return r, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(tv) {
			return nil, false
		}
		return tv[i], true
	default:
		return nil, false
	}
}

// Truthy implements spec.md §4.4's truthiness rule.
func Truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != ""
	case float64:
		return tv != 0
	case int:
		return tv != 0
	case map[string]any:
		return true
	case []any:
		return true
	default:
		return true
	}
}

// walkComponents traverses identifier/array-access components (skipping
// delimiters and the leading marker component) against a starting value.
func walkComponents(start any, comps []ast.Component, from int) (any, bool) {
	cur := start
	ok := true
	for i := from; i < len(comps) && ok; i++ {
		c := comps[i]
		switch c.Kind {
		case ast.CompDelimiter:
			continue
		case ast.CompIdentifier, ast.CompLocalIdentifier, ast.CompArrayAccess:
			cur, ok = Lookup(cur, c.Value)
		default:
			// ThisKeyword/ThisDotSlash/ParentRef at position 0 are consumed
			// by the caller before walkComponents is invoked.
		}
	}
	return cur, ok
}

// Resolve looks up p against the current stack, per spec.md §4.4's
// five-case precedence.
func Resolve(p *ast.Path, st *scope.Stack) (any, bool) {
	switch {
	case p.IsRoot:
		root, _ := st.Root().Base()
		return walkComponents(root, p.Components, 1)

	case p.ExplicitThis:
		base, has := st.Top().Base()
		if !has {
			base, _ = st.Root().Base()
		}
		start := 1
		if len(p.Components) == 0 {
			return base, true
		}
		return walkComponents(base, p.Components, start)

	case p.IsLocal():
		if len(p.Components) == 0 {
			return nil, false
		}
		v, ok := st.Local("@" + p.Components[0].Value)
		if !ok {
			return nil, false
		}
		return walkComponents(v, p.Components, 1)

	case p.Parents > 0:
		frame := st.Ancestor(int(p.Parents))
		base, has := frame.Base()
		if !has {
			return nil, false
		}
		return walkComponents(base, p.Components, 0)

	default:
		for _, f := range reversed(st.Frames()) {
			if base, has := f.Base(); has {
				if v, ok := walkComponents(base, p.Components, 0); ok {
					return v, true
				}
			}
		}
		root, _ := st.Root().Base()
		return walkComponents(root, p.Components, 0)
	}
}

func reversed(s []*scope.Scope) []*scope.Scope {
	out := make([]*scope.Scope, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
