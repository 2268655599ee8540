// Package startest runs expectation test files under the Go test
// framework.
//
// A test file declares tests either as global functions named test_* or
// with defexpect(name, *body). RunTests executes each declared test as a
// go test subtest, wrapping it in any fixtures registered with
// use_fixtures. Failures are reported to the subtest's *testing.T through
// the expect.Reporter seam; the host framework keeps all pass/fail
// bookkeeping.
package startest // import "github.com/NoahTheDuke/starlark-expect/startest"

import (
	"fmt"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/NoahTheDuke/starlark-expect/expect"
)

const suiteKey = "startest.suite"

// A Suite is the result of executing one test file: its declared tests and
// fixtures, in declaration order.
type Suite struct {
	filename string
	globals  starlark.StringDict
	cases    []testCase

	beforeEach, afterEach []starlark.Callable
	beforeAll, afterAll   []starlark.Callable
}

type testCase struct {
	name string
	run  func(thread *starlark.Thread) error
}

// Load executes a test file and collects its declared tests. The dialect
// universe and the harness builtins are predeclared; entries of extra
// override both.
func Load(thread *starlark.Thread, filename string, src interface{}, extra starlark.StringDict) (*Suite, error) {
	s := &Suite{filename: filename}

	predeclared := expect.Universe()
	predeclared["defexpect"] = starlark.NewBuiltin("defexpect", defexpect)
	predeclared["use_fixtures"] = starlark.NewBuiltin("use_fixtures", useFixtures)
	for name, v := range extra {
		predeclared[name] = v
	}

	thread.SetLocal(suiteKey, s)
	defer thread.SetLocal(suiteKey, nil)

	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, err
	}
	s.globals = globals

	// Globals named test_* are tests too, in lexical name order
	// (StringDict keys are sorted).
	for _, name := range globals.Keys() {
		if !strings.HasPrefix(name, "test_") {
			continue
		}
		fn, ok := globals[name].(starlark.Callable)
		if !ok {
			continue
		}
		s.cases = append(s.cases, testCase{
			name: name,
			run: func(thread *starlark.Thread) error {
				_, err := starlark.Call(thread, fn, nil, nil)
				return err
			},
		})
	}
	return s, nil
}

// Names returns the declared test names in execution order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.cases))
	for i, c := range s.cases {
		names[i] = c.name
	}
	return names
}

// Before runs the suite's before-all fixtures.
func (s *Suite) Before(thread *starlark.Thread) error {
	return runFixtures(thread, s.beforeAll, false)
}

// After runs the suite's after-all fixtures, in reverse order.
func (s *Suite) After(thread *starlark.Thread) error {
	return runFixtures(thread, s.afterAll, true)
}

// Run executes one declared test with r bound as the thread's reporter,
// wrapped in the suite's each-fixtures. After-fixtures run even when the
// body raises.
func (s *Suite) Run(thread *starlark.Thread, name string, r expect.Reporter) error {
	var c *testCase
	for i := range s.cases {
		if s.cases[i].name == name {
			c = &s.cases[i]
			break
		}
	}
	if c == nil {
		return fmt.Errorf("startest: no test named %q in %s", name, s.filename)
	}

	prev := expect.LookupReporter(thread)
	expect.SetReporter(thread, r)
	defer func() {
		if prev != nil {
			expect.SetReporter(thread, prev)
		}
	}()

	if err := runFixtures(thread, s.beforeEach, false); err != nil {
		return err
	}
	bodyErr := c.run(thread)
	if err := runFixtures(thread, s.afterEach, true); err != nil && bodyErr == nil {
		bodyErr = err
	}
	return bodyErr
}

func runFixtures(thread *starlark.Thread, fns []starlark.Callable, reverse bool) error {
	if reverse {
		for i := len(fns) - 1; i >= 0; i-- {
			if _, err := starlark.Call(thread, fns[i], nil, nil); err != nil {
				return err
			}
		}
		return nil
	}
	for _, fn := range fns {
		if _, err := starlark.Call(thread, fn, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// RunTests executes the test file as subtests of t.
func RunTests(t *testing.T, filename string, extra starlark.StringDict) {
	thread := &starlark.Thread{
		Name: "startest " + filename,
		Print: func(_ *starlark.Thread, msg string) {
			t.Logf("--> %s", msg)
		},
	}
	expect.SetReporter(thread, t)

	suite, err := Load(thread, filename, nil, extra)
	if err != nil {
		t.Fatal(err)
	}
	if err := suite.Before(thread); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := suite.After(thread); err != nil {
			t.Error(err)
		}
	}()
	for _, name := range suite.Names() {
		name := name
		t.Run(name, func(tt *testing.T) {
			if err := suite.Run(thread, name, tt); err != nil {
				tt.Error(err)
			}
		})
	}
}

// SetReporter associates an error reporter (such as a testing.T) with the
// thread. It is a passthrough to the expect package seam.
func SetReporter(thread *starlark.Thread, r expect.Reporter) { expect.SetReporter(thread, r) }

func currentSuite(thread *starlark.Thread) (*Suite, bool) {
	s, ok := thread.Local(suiteKey).(*Suite)
	return s, ok && s != nil
}

// defexpect(name, *body) declares a named test. A single callable form is
// the test body; a single value form is a truthy check; two forms are one
// (expected, actual) expectation. Longer bodies apply the one-form rule to
// each form in order.
func defexpect(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, ok := currentSuite(thread)
	if !ok {
		return nil, expect.UsageError("defexpect: must be called while a test file is loading")
	}
	if len(kwargs) > 0 {
		return nil, expect.UsageError("defexpect: unexpected keyword arguments")
	}
	if len(args) < 2 {
		return nil, expect.UsageError("defexpect: expected a name and at least one form")
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return nil, expect.UsageError("defexpect: name must be a string")
	}
	body := make([]starlark.Value, len(args)-1)
	copy(body, args[1:])
	pos := thread.CallFrame(1).Pos.String()

	s.cases = append(s.cases, testCase{
		name: name,
		run: func(thread *starlark.Thread) error {
			return runBody(thread, body, pos)
		},
	})
	return starlark.None, nil
}

func runBody(thread *starlark.Thread, body []starlark.Value, pos string) error {
	if len(body) == 2 {
		return expect.Check(thread, body[0], body[1])
	}
	for _, form := range body {
		if fn, ok := form.(starlark.Callable); ok {
			if _, err := starlark.Call(thread, fn, nil, nil); err != nil {
				return err
			}
			continue
		}
		if !bool(form.Truth()) {
			expect.GetReporter(thread).Error(fmt.Sprintf("%s: expectation is not truthy: %s", pos, form.String()))
		}
	}
	return nil
}

// use_fixtures(kind, record=None, before=None, after=None) registers
// fixtures. kind is "each" or "all"; record is a dict with before/after
// keys, sugar for the keyword form.
func useFixtures(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, ok := currentSuite(thread)
	if !ok {
		return nil, expect.UsageError("use_fixtures: must be called while a test file is loading")
	}
	var kind string
	var record, before, after starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"kind", &kind, "record?", &record, "before?", &before, "after?", &after); err != nil {
		return nil, err
	}
	if kind != "each" && kind != "all" {
		return nil, expect.UsageError(fmt.Sprintf("use_fixtures: kind must be \"each\" or \"all\", got %q", kind))
	}
	if record != nil && record != starlark.None {
		m, ok := record.(starlark.Mapping)
		if !ok {
			return nil, expect.UsageError(fmt.Sprintf("use_fixtures: record must be a dict, got %s", record.Type()))
		}
		if v, found, _ := m.Get(starlark.String("before")); found {
			before = v
		}
		if v, found, _ := m.Get(starlark.String("after")); found {
			after = v
		}
	}
	add := func(v starlark.Value, each, all *[]starlark.Callable) error {
		if v == nil || v == starlark.None {
			return nil
		}
		fn, ok := v.(starlark.Callable)
		if !ok {
			return expect.UsageError(fmt.Sprintf("use_fixtures: fixture must be callable, got %s", v.Type()))
		}
		if kind == "each" {
			*each = append(*each, fn)
		} else {
			*all = append(*all, fn)
		}
		return nil
	}
	if err := add(before, &s.beforeEach, &s.beforeAll); err != nil {
		return nil, err
	}
	if err := add(after, &s.afterEach, &s.afterAll); err != nil {
		return nil, err
	}
	return starlark.None, nil
}
