// Package spec is the pluggable specification-validation seam of the
// dialect: a registry from keyword to a Spec that can accept a value and
// explain a rejection. Keyword-shaped expected forms (leading ':') consult
// it.
package spec

import (
	"fmt"
	"strings"
	"sync"

	"go.starlark.net/starlark"
)

// A Spec decides whether a value conforms and explains why it does not.
type Spec interface {
	Valid(thread *starlark.Thread, v starlark.Value) (bool, error)
	Explain(thread *starlark.Thread, v starlark.Value) string
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Spec)
)

// Register binds a keyword to a spec, replacing any previous binding.
// The leading ':' is optional and added when missing.
func Register(keyword string, s Spec) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(keyword)] = s
}

// Lookup reports the spec registered under keyword, if any.
func Lookup(keyword string) (Spec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[normalize(keyword)]
	return s, ok
}

func normalize(keyword string) string {
	if !strings.HasPrefix(keyword, ":") {
		return ":" + keyword
	}
	return keyword
}

// Func adapts a Go predicate and a fixed explanation into a Spec.
func Func(valid func(v starlark.Value) bool, explain string) Spec {
	return goSpec{valid: valid, explain: explain}
}

type goSpec struct {
	valid   func(v starlark.Value) bool
	explain string
}

func (s goSpec) Valid(_ *starlark.Thread, v starlark.Value) (bool, error) {
	return s.valid(v), nil
}

func (s goSpec) Explain(_ *starlark.Thread, v starlark.Value) string {
	return fmt.Sprintf("%s does not conform: %s", v.String(), s.explain)
}

// Predicate adapts a starlark callable into a Spec. The callable receives
// the value and its truthy result decides conformance.
func Predicate(pred starlark.Callable, explain string) Spec {
	return predSpec{pred: pred, explain: explain}
}

type predSpec struct {
	pred    starlark.Callable
	explain string
}

func (s predSpec) Valid(thread *starlark.Thread, v starlark.Value) (bool, error) {
	res, err := starlark.Call(thread, s.pred, starlark.Tuple{v}, nil)
	if err != nil {
		return false, err
	}
	return bool(res.Truth()), nil
}

func (s predSpec) Explain(_ *starlark.Thread, v starlark.Value) string {
	if s.explain == "" {
		return fmt.Sprintf("%s does not satisfy %s", v.String(), s.pred.Name())
	}
	return fmt.Sprintf("%s does not conform: %s", v.String(), s.explain)
}
