package expect

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	regexplib "github.com/NoahTheDuke/starlark-expect/lib/regexp"
	"github.com/NoahTheDuke/starlark-expect/spec"
)

// expectation is one (expected, actual, message?) triple, plus the context
// needed to render a useful failure: the source position of the expect call
// and, when expansion rewrote the surface form, the original form.
type expectation struct {
	expected starlark.Value
	actual   starlark.Value
	msg      string
	within   string
	pos      string
}

// sub derives the expectation for one expansion step, recording the
// original surface form the first time the form is rewritten.
func (ex *expectation) sub(expected, actual starlark.Value) expectation {
	within := ex.within
	if within == "" {
		within = fmt.Sprintf("expect(%s, %s)", ex.expected.String(), ex.actual.String())
	}
	return expectation{
		expected: expected,
		actual:   actual,
		msg:      ex.msg,
		within:   within,
		pos:      ex.pos,
	}
}

func (ex *expectation) failf(thread *starlark.Thread, format string, args ...interface{}) {
	GetReporter(thread).Error(ex.render(format, args...))
}

func (ex *expectation) render(format string, args ...interface{}) string {
	var b strings.Builder
	if ex.pos != "" {
		b.WriteString(ex.pos)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, format, args...)
	if ex.msg != "" {
		fmt.Fprintf(&b, "\n  message: %s", ex.msg)
	}
	if ex.within != "" {
		fmt.Fprintf(&b, "\n  within: %s", ex.within)
	}
	return b.String()
}

// Check runs one expectation from Go code. Failures are reported to the
// thread's reporter; a non-nil error is an evaluation or usage error,
// never an assertion failure.
func Check(thread *starlark.Thread, expected, actual starlark.Value) error {
	return expand(thread, expectation{expected: expected, actual: actual})
}

// expand lowers one expectation into calls on the reporter sink. A non-nil
// error is an evaluation error or a UsageError, never a mere assertion
// failure. It is a pure function of the forms: the same forms always take
// the same path.
func expand(thread *starlark.Thread, ex expectation) error {
	switch classifyActual(ex.actual) {
	case actualFromEach:
		return expandFromEach(thread, ex)
	case actualIsIn:
		return expandIsIn(thread, ex)
	}

	switch classify(ex.expected) {
	case kindAllOf:
		m := ex.expected.(*moreValue)
		for _, sub := range m.subs {
			if err := expand(thread, ex.sub(sub, ex.actual)); err != nil {
				return err
			}
		}
		return nil
	case kindChain:
		return expandChain(thread, ex)
	case kindDestructured:
		return expandDestructured(thread, ex)
	case kindErrorKind:
		return checkRaises(thread, ex)
	case kindTypeRef:
		return checkType(thread, ex)
	case kindSpec:
		return checkSpec(thread, ex)
	case kindRegex:
		return checkRegex(thread, ex)
	case kindPredicate:
		return checkPredicate(thread, ex)
	}
	return checkEqual(thread, ex)
}

// expandFromEach evaluates the body once per element and expands the same
// expected form against each result: one assertion per iteration.
func expandFromEach(thread *starlark.Thread, ex expectation) error {
	fe := ex.actual.(*fromEachValue)
	iter := fe.iterable.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		args := starlark.Tuple{elem}
		// A tuple element splats into a body of matching arity.
		if tup, ok := elem.(starlark.Tuple); ok {
			if fn, ok := fe.fn.(*starlark.Function); ok && fn.NumParams() == len(tup) && len(tup) > 1 {
				args = tup
			}
		}
		v, err := starlark.Call(thread, fe.fn, args, nil)
		if err != nil {
			return err
		}
		if err := expand(thread, ex.sub(ex.expected, v)); err != nil {
			return err
		}
	}
	return nil
}

// expandIsIn implements membership: a submap check against a mapping, or
// an aggregate element-wise check against a sequence or set.
func expandIsIn(thread *starlark.Thread, ex expectation) error {
	coll := ex.actual.(*isInValue).coll

	if am, ok := coll.(starlark.IterableMapping); ok {
		em, ok := ex.expected.(starlark.IterableMapping)
		if !ok {
			return usageErrorf("is_in: expected value must be a mapping when the collection is a mapping, got %s", ex.expected.Type())
		}
		want := starlark.NewDict(len(em.Items()))
		got := starlark.NewDict(len(em.Items()))
		for _, item := range em.Items() {
			k, v := item[0], item[1]
			if err := want.SetKey(k, v); err != nil {
				return err
			}
			av, found, err := am.Get(k)
			if err != nil {
				return err
			}
			if found {
				if err := got.SetKey(k, av); err != nil {
					return err
				}
			}
		}
		eq, err := starlark.Compare(syntax.EQL, starlark.Value(want), starlark.Value(got))
		if err != nil {
			return err
		}
		if !eq {
			ex.failf(thread, "Not true that %s contains the submap %s. Restricted to its keys it is %s.",
				coll.String(), want.String(), got.String())
		}
		return nil
	}

	it, ok := coll.(starlark.Iterable)
	if !ok {
		return usageErrorf("is_in requires a mapping or sequence, got %s", coll.Type())
	}

	// Check every element, but surface at most one failure and one error
	// so a partly failing collection yields one actionable diagnostic
	// instead of N reports.
	iter := it.Iterate()
	defer iter.Done()
	var elem starlark.Value
	var firstFail string
	var firstErr error
	for iter.Next(&elem) {
		rec := &recording{}
		sub := ex.sub(ex.expected, elem)
		err := withReporter(thread, rec, func() error {
			return expand(thread, sub)
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if firstFail == "" && len(rec.msgs) > 0 {
			firstFail = rec.msgs[0]
		}
	}
	if firstFail != "" {
		GetReporter(thread).Error(firstFail)
	}
	return firstErr
}

// expandChain threads the actual value through each transform. Errors from
// evaluating a thunk actual are caught and the error message threaded
// onward, so transforms can introspect the failure.
func expandChain(thread *starlark.Thread, ex expectation) error {
	c := ex.expected.(*chainValue)
	base := ex.actual
	if fn, ok := base.(starlark.Callable); ok {
		v, err := starlark.Call(thread, fn, nil, nil)
		if err != nil {
			base = starlark.String(err.Error())
		} else {
			base = v
		}
	}
	for _, p := range c.pairs {
		v, err := applyTransform(thread, p.transform, base)
		if err != nil {
			return err
		}
		if err := expand(thread, ex.sub(p.expected, v)); err != nil {
			return err
		}
	}
	return nil
}

func applyTransform(thread *starlark.Thread, transform, v starlark.Value) (starlark.Value, error) {
	switch t := transform.(type) {
	case starlark.Callable:
		return starlark.Call(thread, t, starlark.Tuple{v}, nil)
	case starlark.String:
		name := t.GoString()
		if ha, ok := v.(starlark.HasAttrs); ok {
			av, err := ha.Attr(name)
			if err == nil && av != nil {
				return av, nil
			}
		}
		if m, ok := v.(starlark.Mapping); ok {
			mv, found, err := m.Get(t)
			if err == nil && found {
				return mv, nil
			}
		}
		return nil, usageErrorf("more_to: cannot access %q on value of type %s", name, v.Type())
	}
	return nil, usageErrorf("more_to: transform must be a callable or a string accessor, got %s", transform.Type())
}

// expandDestructured binds the actual value through the binder, which
// returns (expected, actual) pairs to expand independently.
func expandDestructured(thread *starlark.Thread, ex expectation) error {
	d := ex.expected.(*destructureValue)
	res, err := starlark.Call(thread, d.binder, starlark.Tuple{ex.actual}, nil)
	if err != nil {
		return err
	}
	it, ok := res.(starlark.Iterable)
	if !ok {
		return usageErrorf("more_of: binder must return a sequence of (expected, actual) pairs, got %s", res.Type())
	}
	iter := it.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		pair, ok := elem.(starlark.Indexable)
		if !ok || pair.Len() != 2 {
			return usageErrorf("more_of: binder must return (expected, actual) pairs, got %s", elem.String())
		}
		if err := expand(thread, ex.sub(pair.Index(0), pair.Index(1))); err != nil {
			return err
		}
	}
	return nil
}

func checkRaises(thread *starlark.Thread, ex expectation) error {
	e := ex.expected.(*errorKind)
	fn, ok := ex.actual.(starlark.Callable)
	if !ok {
		return usageErrorf("%s: actual must be a callable to check for errors, got %s", e.name, ex.actual.Type())
	}
	_, err := starlark.Call(thread, fn, nil, nil)
	if err == nil {
		ex.failf(thread, "Not true that calling %s raises %s. It returned without error.", fn.String(), e.String())
		return nil
	}
	if e.pattern != nil && !e.pattern.MatchString(evalErrMessage(err)) {
		ex.failf(thread, "Not true that calling %s raises %s. It raised: %q.", fn.String(), e.String(), evalErrMessage(err))
	}
	return nil
}

// evalErrMessage strips the backtrace an EvalError renders via Error.
func evalErrMessage(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Msg
	}
	return err.Error()
}

func checkType(thread *starlark.Thread, ex expectation) error {
	want := typeConstructors[ex.expected.(*starlark.Builtin).Name()]
	if got := ex.actual.Type(); got != want {
		ex.failf(thread, "Not true that <%s> is of type %q. It is of type %q.", ex.actual.String(), want, got)
	}
	return nil
}

func checkSpec(thread *starlark.Thread, ex expectation) error {
	kw := ex.expected.(starlark.String).GoString()
	sp, _ := spec.Lookup(kw)
	ok, err := sp.Valid(thread, ex.actual)
	if err != nil {
		return err
	}
	if !ok {
		explain := sp.Explain(thread, ex.actual)
		if explain != "" {
			explain = "\n  " + explain
		}
		ex.failf(thread, "Not true that <%s> conforms to spec %q.%s", ex.actual.String(), kw, explain)
	}
	return nil
}

func checkRegex(thread *starlark.Thread, ex expectation) error {
	re := ex.expected.(*regexplib.Regexp)
	s, ok := starlark.AsString(ex.actual)
	if !ok {
		ex.failf(thread, "Not true that %s contains a match for <%s>. It is not a string.", ex.actual.String(), re.String())
		return nil
	}
	if !re.MatchString(s) {
		ex.failf(thread, "Not true that <%s> contains a match for <%s>.", s, re.String())
	}
	return nil
}

func checkPredicate(thread *starlark.Thread, ex expectation) error {
	fn := ex.expected.(starlark.Callable)
	v, err := starlark.Call(thread, fn, starlark.Tuple{ex.actual}, nil)
	if err != nil {
		return err
	}
	if !bool(v.Truth()) {
		ex.failf(thread, "Not true that %s(%s) is truthy. It returned %s.", fn.Name(), ex.actual.String(), v.String())
	}
	return nil
}

func checkEqual(thread *starlark.Thread, ex expectation) error {
	eq, err := starlark.Compare(syntax.EQL, ex.expected, ex.actual)
	if err != nil {
		return err
	}
	if eq {
		return nil
	}

	detail := ""
	if es, ok := ex.expected.(starlark.String); ok {
		if as, ok := ex.actual.(starlark.String); ok {
			detail = stringDiff(es.GoString(), as.GoString())
		}
	}
	msg := fmt.Sprintf("Not true that %s is equal to %s.", ex.actual.String(), ex.expected.String())
	if detail != "" {
		msg += "\n" + detail
	}

	// A diff-aware reporter gets the failure restructured as a deep value
	// diff. This applies only to plain equality, not predicates or specs.
	if fr, ok := GetReporter(thread).(FailureReporter); ok {
		added, removed := valueDiff(ex.expected, ex.actual)
		fr.ReportFailure(Report{
			Type:     "fail",
			Message:  ex.render("%s", msg),
			Expected: ex.expected,
			Actual:   ex.actual,
			Diffs:    []Diff{{Actual: ex.actual, Added: added, Removed: removed}},
		})
		return nil
	}
	ex.failf(thread, "%s", msg)
	return nil
}
