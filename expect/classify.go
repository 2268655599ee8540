package expect

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/starlark"

	regexplib "github.com/NoahTheDuke/starlark-expect/lib/regexp"
	"github.com/NoahTheDuke/starlark-expect/spec"
)

// kind tags the shape of an expected form. Classification is a pure
// function of the form: structural markers built by the dialect's own
// constructors always beat value-based checks, so a chain's transforms are
// never mistaken for a predicate.
type kind int

const (
	kindEqual kind = iota
	kindPredicate
	kindTypeRef
	kindErrorKind
	kindSpec
	kindRegex
	kindAllOf
	kindChain
	kindDestructured
)

func (k kind) String() string {
	switch k {
	case kindEqual:
		return "equal"
	case kindPredicate:
		return "predicate"
	case kindTypeRef:
		return "type"
	case kindErrorKind:
		return "error"
	case kindSpec:
		return "spec"
	case kindRegex:
		return "regex"
	case kindAllOf:
		return "more"
	case kindChain:
		return "more_to"
	case kindDestructured:
		return "more_of"
	}
	return "unknown"
}

// actualKind tags the wrapper, if any, around an actual form.
type actualKind int

const (
	actualPlain actualKind = iota
	actualFromEach
	actualIsIn
)

// typeConstructors maps the name of a universe builtin to the type string
// it constructs. A builtin registered here classifies as a type reference,
// never as a predicate; every other callable is a predicate. This replaces
// the source dialect's reflective symbol lookup with an explicit registry.
var typeConstructors = map[string]string{
	"bool":  "bool",
	"dict":  "dict",
	"float": "float",
	"int":   "int",
	"list":  "list",
	"set":   "set",
	"str":   "string",
	"tuple": "tuple",
}

// classify determines which check an expected form stands for.
func classify(expected starlark.Value) kind {
	switch v := expected.(type) {
	case *moreValue:
		return kindAllOf
	case *chainValue:
		return kindChain
	case *destructureValue:
		return kindDestructured
	case *errorKind:
		return kindErrorKind
	case *regexplib.Regexp:
		return kindRegex
	case *starlark.Builtin:
		if _, ok := typeConstructors[v.Name()]; ok {
			return kindTypeRef
		}
		return kindPredicate
	case starlark.String:
		if kw := v.GoString(); strings.HasPrefix(kw, ":") {
			if _, ok := spec.Lookup(kw); ok {
				return kindSpec
			}
		}
		return kindEqual
	}
	if _, ok := expected.(starlark.Callable); ok {
		return kindPredicate
	}
	return kindEqual
}

// classifyActual determines the wrapper, if any, around an actual form.
func classifyActual(actual starlark.Value) actualKind {
	switch actual.(type) {
	case *fromEachValue:
		return actualFromEach
	case *isInValue:
		return actualIsIn
	}
	return actualPlain
}

// moreValue is the AllOf marker built by more(*expecteds): each sub-form
// is checked independently against the same actual.
type moreValue struct {
	subs []starlark.Value
}

var _ starlark.Value = (*moreValue)(nil)

func (m *moreValue) String() string {
	var b strings.Builder
	b.WriteString("more(")
	for i, sub := range m.subs {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(sub.String())
	}
	b.WriteByte(')')
	return b.String()
}
func (m *moreValue) Type() string          { return "more" }
func (m *moreValue) Freeze()               { freezeAll(m.subs) }
func (m *moreValue) Truth() starlark.Bool  { return true }
func (m *moreValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: more") }

// chainValue is the ThreadedChain marker built by more_to(e1, f1, ...):
// the actual value is threaded through each transform and the result
// checked against the paired expected form.
type chainValue struct {
	pairs []chainPair
}

type chainPair struct {
	expected  starlark.Value
	transform starlark.Value // callable, or string accessor
}

var _ starlark.Value = (*chainValue)(nil)

func (c *chainValue) String() string {
	var b strings.Builder
	b.WriteString("more_to(")
	for i, p := range c.pairs {
		if i != 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s, %s", p.expected.String(), p.transform.String())
	}
	b.WriteByte(')')
	return b.String()
}
func (c *chainValue) Type() string { return "more_to" }
func (c *chainValue) Freeze() {
	for _, p := range c.pairs {
		p.expected.Freeze()
		p.transform.Freeze()
	}
}
func (c *chainValue) Truth() starlark.Bool  { return true }
func (c *chainValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: more_to") }

// destructureValue is the Destructured marker built by more_of(binder):
// binder receives the actual value and returns (expected, actual) pairs,
// each expanded independently within the binder's lexical scope.
type destructureValue struct {
	binder starlark.Callable
}

var _ starlark.Value = (*destructureValue)(nil)

func (d *destructureValue) String() string        { return fmt.Sprintf("more_of(%s)", d.binder.String()) }
func (d *destructureValue) Type() string          { return "more_of" }
func (d *destructureValue) Freeze()               { d.binder.Freeze() }
func (d *destructureValue) Truth() starlark.Bool  { return true }
func (d *destructureValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: more_of") }

// fromEachValue is the FromEach actual wrapper built by
// from_each(iterable, fn): the expectation is expanded once per element.
type fromEachValue struct {
	iterable starlark.Iterable
	fn       starlark.Callable
}

var _ starlark.Value = (*fromEachValue)(nil)

func (f *fromEachValue) String() string {
	return fmt.Sprintf("from_each(%s, %s)", f.iterable.String(), f.fn.String())
}
func (f *fromEachValue) Type() string { return "from_each" }
func (f *fromEachValue) Freeze() {
	f.iterable.Freeze()
	f.fn.Freeze()
}
func (f *fromEachValue) Truth() starlark.Bool  { return true }
func (f *fromEachValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: from_each") }

// isInValue is the In actual wrapper built by is_in(collection).
type isInValue struct {
	coll starlark.Value
}

var _ starlark.Value = (*isInValue)(nil)

func (v *isInValue) String() string        { return fmt.Sprintf("is_in(%s)", v.coll.String()) }
func (v *isInValue) Type() string          { return "is_in" }
func (v *isInValue) Freeze()               { v.coll.Freeze() }
func (v *isInValue) Truth() starlark.Bool  { return true }
func (v *isInValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: is_in") }

// errorKind is an exception-type reference: expecting it asserts that
// evaluating the actual thunk raises. Starlark has a single dynamic error
// channel, so kinds are values such as eval_error, optionally narrowed
// with .matching(pattern).
type errorKind struct {
	name    string
	pattern *regexp.Regexp
}

var _ starlark.Value = (*errorKind)(nil)
var _ starlark.HasAttrs = (*errorKind)(nil)

func (e *errorKind) String() string {
	if e.pattern != nil {
		return fmt.Sprintf("%s.matching(%q)", e.name, e.pattern.String())
	}
	return e.name
}
func (e *errorKind) Type() string          { return "error_kind" }
func (e *errorKind) Freeze()               {}
func (e *errorKind) Truth() starlark.Bool  { return true }
func (e *errorKind) Hash() (uint32, error) { return starlark.String(e.String()).Hash() }

func (e *errorKind) AttrNames() []string { return []string{"matching"} }
func (e *errorKind) Attr(name string) (starlark.Value, error) {
	if name != "matching" {
		return nil, nil // no such method
	}
	impl := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pattern string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &pattern); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		recv := b.Receiver().(*errorKind)
		return &errorKind{name: recv.name, pattern: re}, nil
	}
	return starlark.NewBuiltin(name, impl).BindReceiver(e), nil
}

func freezeAll(vs []starlark.Value) {
	for _, v := range vs {
		v.Freeze()
	}
}
