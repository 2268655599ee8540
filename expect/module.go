package expect

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	regexplib "github.com/NoahTheDuke/starlark-expect/lib/regexp"
	"github.com/NoahTheDuke/starlark-expect/spec"
)

// Universe returns the predeclared environment of the dialect: the expect
// builtin, the compound markers, the side_effects harness, and the regexp
// module whose pattern values double as regex expected forms.
func Universe() starlark.StringDict {
	return starlark.StringDict{
		"expect":       starlark.NewBuiltin("expect", expectFn),
		"more":         starlark.NewBuiltin("more", moreFn),
		"more_to":      starlark.NewBuiltin("more_to", moreToFn),
		"more_of":      starlark.NewBuiltin("more_of", moreOfFn),
		"from_each":    starlark.NewBuiltin("from_each", fromEachFn),
		"is_in":        starlark.NewBuiltin("is_in", isInFn),
		"side_effects": starlark.NewBuiltin("side_effects", sideEffects),
		"catch":        starlark.NewBuiltin("catch", catch),
		"defspec":      starlark.NewBuiltin("defspec", defspecFn),
		"eval_error":   &errorKind{name: "eval_error"},
		"regexp":       regexplib.Module,
	}
}

// NewModule adds the dialect to a predeclared environment under a single
// "expect" module value, for embedders that prefer a namespaced surface.
func NewModule(predeclared starlark.StringDict) {
	predeclared["expect"] = &starlarkstruct.Module{
		Name:    "expect",
		Members: Universe(),
	}
}

func expectFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var expected, actual starlark.Value
	var msg starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expected", &expected, "actual", &actual, "msg?", &msg); err != nil {
		return nil, err
	}
	ex := expectation{
		expected: expected,
		actual:   actual,
		msg:      messageString(msg),
		pos:      thread.CallFrame(1).Pos.String(),
	}
	if err := expand(thread, ex); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func messageString(msg starlark.Value) string {
	if msg == nil || msg == starlark.None {
		return ""
	}
	if s, ok := starlark.AsString(msg); ok {
		return s
	}
	return msg.String()
}

func moreFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, usageErrorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 {
		return nil, usageErrorf("%s: expected at least one form", b.Name())
	}
	subs := make([]starlark.Value, len(args))
	copy(subs, args)
	return &moreValue{subs: subs}, nil
}

func moreToFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, usageErrorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, usageErrorf("%s: expected an even number of expected/transform forms, got %d", b.Name(), len(args))
	}
	pairs := make([]chainPair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, chainPair{expected: args[i], transform: args[i+1]})
	}
	return &chainValue{pairs: pairs}, nil
}

func moreOfFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var binder starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &binder); err != nil {
		return nil, err
	}
	return &destructureValue{binder: binder}, nil
}

func fromEachFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "fn", &fn); err != nil {
		return nil, err
	}
	return &fromEachValue{iterable: iterable, fn: fn}, nil
}

func isInFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var coll starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &coll); err != nil {
		return nil, err
	}
	return &isInValue{coll: coll}, nil
}

// catch(fn) evaluates fn() and returns its evaluation error message if it
// failed or None if it succeeded.
func catch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn); err != nil {
		return nil, err
	}
	if _, err := starlark.Call(thread, fn, nil, nil); err != nil {
		return starlark.String(evalErrMessage(err)), nil
	}
	return starlark.None, nil
}

// defspec(keyword, predicate, explain=None) registers a predicate-backed
// specification under a keyword, for use as an expected form.
func defspecFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var keyword string
	var pred starlark.Callable
	var explain string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "keyword", &keyword, "predicate", &pred, "explain?", &explain); err != nil {
		return nil, err
	}
	spec.Register(keyword, spec.Predicate(pred, explain))
	return starlark.None, nil
}
