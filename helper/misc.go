package helper

import (
	"encoding/json"
	"fmt"

	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/path"
)

func lookupHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.Arity(2); err != nil {
		return nil, err
	}
	key := fmt.Sprint(ctx.Arguments[1])
	v, ok := path.Lookup(ctx.Arguments[0], key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func logHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.ArityRange(0, 32); err != nil {
		return nil, err
	}
	return nil, nil
}

func jsonHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.Arity(1); err != nil {
		return nil, err
	}
	b, err := json.Marshal(ctx.Arguments[0])
	if err != nil {
		return nil, &braketerr.Error{Kind: braketerr.Message, Message: "json helper: " + err.Error(), Cause: err}
	}
	return string(b), nil
}
