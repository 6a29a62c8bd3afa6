package helper

import (
	"fmt"

	"github.com/ravenq/bracket/braketerr"
)

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case nil:
		return b == nil
	case bool:
		_, ok := b.(bool)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	default:
		return true
	}
}

func compareValues(ctx *Context, op string) (int, error) {
	if err := ctx.Arity(2); err != nil {
		return 0, err
	}
	af, aok := asFloat(ctx.Arguments[0])
	bf, bok := asFloat(ctx.Arguments[1])
	if !aok || !bok {
		return 0, &braketerr.Error{
			Kind:    braketerr.InvalidNumericalOperand,
			Message: fmt.Sprintf("helper %q requires numeric operands", op),
		}
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func eqHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.Arity(2); err != nil {
		return nil, err
	}
	return equalValues(ctx.Arguments[0], ctx.Arguments[1]), nil
}

func neHelper(_ Renderer, ctx *Context) (any, error) {
	if err := ctx.Arity(2); err != nil {
		return nil, err
	}
	return !equalValues(ctx.Arguments[0], ctx.Arguments[1]), nil
}

func gtHelper(_ Renderer, ctx *Context) (any, error) {
	c, err := compareValues(ctx, "gt")
	if err != nil {
		return nil, err
	}
	return c > 0, nil
}

func gteHelper(_ Renderer, ctx *Context) (any, error) {
	c, err := compareValues(ctx, "gte")
	if err != nil {
		return nil, err
	}
	return c >= 0, nil
}

func ltHelper(_ Renderer, ctx *Context) (any, error) {
	c, err := compareValues(ctx, "lt")
	if err != nil {
		return nil, err
	}
	return c < 0, nil
}

func lteHelper(_ Renderer, ctx *Context) (any, error) {
	c, err := compareValues(ctx, "lte")
	if err != nil {
		return nil, err
	}
	return c <= 0, nil
}
