package spec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestRegisterNormalizesKeyword(t *testing.T) {
	Register("answer", Func(func(v starlark.Value) bool {
		return v == starlark.MakeInt(42)
	}, "must be 42"))

	for _, kw := range []string{"answer", ":answer"} {
		s, ok := Lookup(kw)
		require.True(t, ok, kw)
		require.NotNil(t, s)
	}
	_, ok := Lookup(":missing")
	require.False(t, ok)
}

func TestFuncSpec(t *testing.T) {
	s := Func(func(v starlark.Value) bool {
		i, ok := v.(starlark.Int)
		if !ok {
			return false
		}
		n, _ := i.Int64()
		return n >= 0
	}, "a non-negative int")

	thread := &starlark.Thread{Name: t.Name()}
	ok, err := s.Valid(thread, starlark.MakeInt(3))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Valid(thread, starlark.MakeInt(-3))
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, s.Explain(thread, starlark.MakeInt(-3)), "a non-negative int")
}

func TestPredicateSpec(t *testing.T) {
	thread := &starlark.Thread{Name: t.Name()}
	pred, err := starlark.Eval(thread, t.Name()+".star", `lambda v: type(v) == "string"`, nil)
	require.NoError(t, err)

	s := Predicate(pred.(starlark.Callable), "")
	ok, err := s.Valid(thread, starlark.String("hi"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Valid(thread, starlark.MakeInt(1))
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, s.Explain(thread, starlark.MakeInt(1)), "does not satisfy")
}

func TestRegisterReplaces(t *testing.T) {
	Register(":flip", Func(func(starlark.Value) bool { return true }, ""))
	Register(":flip", Func(func(starlark.Value) bool { return false }, ""))

	s, ok := Lookup(":flip")
	require.True(t, ok)
	valid, err := s.Valid(&starlark.Thread{}, starlark.None)
	require.NoError(t, err)
	require.False(t, valid)
}
