package helper

import (
	"sort"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/path"
)

func registerBuiltins(r *Registry) {
	r.Insert("if", blockHelper(ifHelper))
	r.Insert("unless", blockHelper(unlessHelper))
	r.Insert("each", blockHelper(eachHelper))
	r.Insert("with", blockHelper(withHelper))
	r.Insert("and", Func(andHelper))
	r.Insert("or", Func(orHelper))
	r.Insert("not", Func(notHelper))
	r.Insert("eq", Func(eqHelper))
	r.Insert("ne", Func(neHelper))
	r.Insert("gt", Func(gtHelper))
	r.Insert("gte", Func(gteHelper))
	r.Insert("lt", Func(ltHelper))
	r.Insert("lte", Func(lteHelper))
	r.Insert("lookup", Func(lookupHelper))
	r.Insert("log", Func(logHelper))
	r.Insert("json", Func(jsonHelper))
}

// blockFunc is a Helper implementation for block helpers, which always
// need the enclosing Block to call back into Template/Inverse.
type blockFunc func(r Renderer, ctx *Context, block *ast.Block) (any, error)

func (f blockFunc) Call(r Renderer, ctx *Context, block *ast.Block) (any, error) {
	return f(r, ctx, block)
}

func blockHelper(f blockFunc) Helper { return f }

func ifHelper(r Renderer, ctx *Context, block *ast.Block) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	if path.Truthy(ctx.Arguments[0]) {
		return nil, r.Template(block)
	}
	return nil, r.Inverse(block)
}

func unlessHelper(r Renderer, ctx *Context, block *ast.Block) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	if !path.Truthy(ctx.Arguments[0]) {
		return nil, r.Template(block)
	}
	return nil, r.Inverse(block)
}

func withHelper(r Renderer, ctx *Context, block *ast.Block) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	v := ctx.Arguments[0]
	if !path.Truthy(v) {
		return nil, r.Inverse(block)
	}
	h := r.PushScope(v, true)
	defer r.PopScope()
	_ = h
	return nil, r.Template(block)
}

func eachHelper(r Renderer, ctx *Context, block *ast.Block) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	switch items := ctx.Arguments[0].(type) {
	case []any:
		if len(items) == 0 {
			return nil, r.Inverse(block)
		}
		for i, item := range items {
			h := r.PushScope(item, true)
			h.SetLocal("@index", float64(i))
			h.SetLocal("@first", i == 0)
			h.SetLocal("@last", i == len(items)-1)
			if err := r.Template(block); err != nil {
				r.PopScope()
				return nil, err
			}
			r.PopScope()
		}
		return nil, nil
	case map[string]any:
		if len(items) == 0 {
			return nil, r.Inverse(block)
		}
		keys := make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			h := r.PushScope(items[k], true)
			h.SetLocal("@key", k)
			h.SetLocal("@index", float64(i))
			h.SetLocal("@first", i == 0)
			h.SetLocal("@last", i == len(keys)-1)
			if err := r.Template(block); err != nil {
				r.PopScope()
				return nil, err
			}
			r.PopScope()
		}
		return nil, nil
	default:
		return nil, &braketerr.Error{Kind: braketerr.IterableExpected, Message: "each requires an array or object argument"}
	}
}
