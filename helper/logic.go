package helper

import "github.com/ravenq/bracket/path"

func andHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.ArityRange(1, 32); err != nil {
		return nil, err
	}
	for _, a := range ctx.Arguments {
		if !path.Truthy(a) {
			return false, nil
		}
	}
	return true, nil
}

func orHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.ArityRange(1, 32); err != nil {
		return nil, err
	}
	for _, a := range ctx.Arguments {
		if path.Truthy(a) {
			return true, nil
		}
	}
	return false, nil
}

func notHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	return !path.Truthy(ctx.Arguments[0]), nil
}
