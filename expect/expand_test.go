package expect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

type testReporter struct {
	msgs []string
}

func (r *testReporter) Error(args ...interface{}) {
	r.msgs = append(r.msgs, fmt.Sprint(args...))
}

func runProgram(t *testing.T, program string) (starlark.StringDict, *testReporter, error) {
	t.Helper()

	resolve.AllowSet = true

	rep := &testReporter{}
	thread := &starlark.Thread{
		Name: t.Name(),
		Print: func(_ *starlark.Thread, msg string) {
			t.Logf("--> %s", msg)
		},
	}
	SetReporter(thread, rep)
	globals, err := starlark.ExecFile(thread, t.Name()+".star", program, Universe())
	return globals, rep, err
}

// failures runs a program and returns the reported failure messages,
// requiring that evaluation itself succeeded.
func failures(t *testing.T, program string) []string {
	t.Helper()
	_, rep, err := runProgram(t, program)
	require.NoError(t, err)
	return rep.msgs
}

func TestEquality(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(4, 2 + 2)`:                    0,
		`expect("ab", "a" + "b")`:             0,
		`expect([1, 2], [1, 2])`:              0,
		`expect({"a": 1}, {"a": 1})`:          0,
		`expect(5, 2 + 2)`:                    1,
		`expect([1, 2], [2, 1])`:              1,
		`expect(None, None)`:                  0,
		`expect(4, 5, msg="should be four")`:  1,
		`expect(4, 2 + 2, msg="never shown")`: 0,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestEqualityMessages(t *testing.T) {
	msgs := failures(t, `expect(4, 5, msg="should be four")`)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "Not true that 5 is equal to 4.")
	require.Contains(t, msgs[0], "message: should be four")
}

func TestStringDiffMessage(t *testing.T) {
	msgs := failures(t, `expect("food", "fox")`)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], `matches: "fo"`)
	require.Contains(t, msgs[0], `expected suffix: "od"`)
	require.Contains(t, msgs[0], `actual suffix: "x"`)
}

func TestPredicate(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(lambda x: x % 2 == 0, 4)`: 0,
		`expect(lambda x: x % 2 == 0, 3)`: 1,
		`expect(all, [1, 2, 3])`:          0,
	} {
		t.Run(program, func(t *testing.T) {
			msgs := failures(t, program)
			require.Len(t, msgs, nFailures)
			if nFailures > 0 {
				require.Contains(t, msgs[0], "is truthy")
			}
		})
	}
}

func TestPredicateError(t *testing.T) {
	_, _, err := runProgram(t, `expect(lambda x: x.nope, 3)`)
	require.Error(t, err)
}

func TestTypeRef(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(int, 42)`:    0,
		`expect(str, "x")`:   0,
		`expect(list, [1])`:  0,
		`expect(dict, {})`:   0,
		`expect(bool, True)`: 0,
		`expect(int, "x")`:   1,
		`expect(tuple, [1])`: 1,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}

	msgs := failures(t, `expect(int, "x")`)
	require.Contains(t, msgs[0], `is of type "int"`)
	require.Contains(t, msgs[0], `It is of type "string"`)
}

func TestRegex(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(regexp.compile("foo"), "foobar")`: 0,
		`expect(regexp.compile("fo+"), "fooo")`:   0,
		`expect(regexp.compile("foo"), "barbaz")`: 1,
		`expect(regexp.compile("foo"), 42)`:       1,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestSpecExpected(t *testing.T) {
	program := `
defspec(":age", lambda v: type(v) == "int" and v >= 0, explain="an age is a non-negative int")
expect(":age", 31)
expect(":age", -4)
`
	msgs := failures(t, program)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], `conforms to spec ":age"`)
	require.Contains(t, msgs[0], "an age is a non-negative int")
}

func TestUnregisteredKeywordIsLiteral(t *testing.T) {
	// A keyword-shaped string with no registered spec is plain data.
	require.Empty(t, failures(t, `expect(":nope-never-registered", ":nope-never-registered")`))
}

func TestErrorKind(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(eval_error, lambda: 1 // 0)`:                              0,
		`expect(eval_error.matching("division by zero"), lambda: 1 // 0)`: 0,
		`expect(eval_error.matching("out of range"), lambda: 1 // 0)`:     1,
		`expect(eval_error, lambda: 1 + 1)`:                               1,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestErrorKindNeedsCallable(t *testing.T) {
	_, _, err := runProgram(t, `expect(eval_error, 42)`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be a callable")
}

func TestMore(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(more(int, lambda x: x % 2 == 0), 42)`: 0,
		`expect(more(int, lambda x: x % 2 == 0), 43)`: 1,
		`expect(more(str, lambda x: x % 2 == 0), 43)`: 2,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}

	msgs := failures(t, `expect(more(int, str), 42)`)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "within: expect(more(int, str), 42)")
}

func TestMoreTo(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(more_to(1, lambda l: l[0], 3, lambda l: l[-1]), [1, 2, 3])`: 0,
		`expect(more_to(9, lambda l: l[0]), [1, 2, 3])`:                     1,
		`expect(more_to("a", "k"), {"k": "a"})`:                             0,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestMoreToCatchesActualErrors(t *testing.T) {
	// The error raised by the thunk threads onward as its message.
	program := `expect(more_to(regexp.compile("division by zero"), lambda e: e), lambda: 1 // 0)`
	require.Empty(t, failures(t, program))
}

func TestMoreToBadTransform(t *testing.T) {
	_, _, err := runProgram(t, `expect(more_to(1, 42), [1])`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "transform must be a callable or a string accessor")
}

func TestMoreOf(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(more_of(lambda p: [(1, p[0]), (2, p[1])]), [1, 2])`: 0,
		`expect(more_of(lambda p: [(1, p[0]), (9, p[1])]), [1, 2])`: 1,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestMoreOfBadBinder(t *testing.T) {
	_, _, err := runProgram(t, `expect(more_of(lambda p: 42), [1, 2])`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "binder must return a sequence")
}

func TestFromEach(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(str, from_each(["a", "b", "c"], lambda x: x))`:       0,
		`expect(2, from_each([1, 2], lambda x: x))`:                  1,
		`expect(3, from_each([(1, 2), (2, 1)], lambda a, b: a + b))`: 0,
		`expect(lambda x: x > 0, from_each([1, 2, 3], lambda x: x))`: 0,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestIsInSequence(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect(lambda x: x % 2 == 0, is_in([2, 4, 6]))`: 0,
		// one failing element yields exactly one report
		`expect(lambda x: x % 2 == 0, is_in([2, 4, 5]))`: 1,
		`expect(lambda x: x % 2 == 0, is_in([1, 3, 5]))`: 1,
		`expect(int, is_in(set([1, 2, 3])))`:             0,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestIsInSequenceError(t *testing.T) {
	// Element errors are captured per element and the first re-raised
	// after the remaining elements were checked.
	_, rep, err := runProgram(t, `expect(lambda x: x.nope, is_in([1, 2]))`)
	require.Error(t, err)
	require.Empty(t, rep.msgs)
}

func TestIsInMapping(t *testing.T) {
	for program, nFailures := range map[string]int{
		`expect({"a": 1}, is_in({"a": 1, "c": 4}))`:         0,
		`expect({"a": 1, "b": 2}, is_in({"a": 1, "c": 4}))`: 1,
		`expect({"a": 2}, is_in({"a": 1, "c": 4}))`:         1,
		`expect({}, is_in({"a": 1}))`:                       0,
	} {
		t.Run(program, func(t *testing.T) {
			require.Len(t, failures(t, program), nFailures)
		})
	}
}

func TestIsInUsageErrors(t *testing.T) {
	for program, want := range map[string]string{
		`expect(1, is_in({"a": 1}))`: "must be a mapping",
		`expect(1, is_in(42))`:       "requires a mapping or sequence",
	} {
		t.Run(program, func(t *testing.T) {
			_, _, err := runProgram(t, program)
			require.Error(t, err)
			require.Contains(t, err.Error(), want)
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	vals := []starlark.Value{
		starlark.MakeInt(4),
		starlark.String("x"),
		&moreValue{subs: []starlark.Value{starlark.None}},
		&chainValue{},
		&destructureValue{},
		&errorKind{name: "eval_error"},
	}
	for _, v := range vals {
		first := classify(v)
		for i := 0; i < 3; i++ {
			require.Equal(t, first, classify(v))
		}
	}
	require.Equal(t, kindEqual, classify(starlark.MakeInt(4)))
	require.Equal(t, kindAllOf, classify(&moreValue{}))
	require.Equal(t, kindChain, classify(&chainValue{}))
	require.Equal(t, kindDestructured, classify(&destructureValue{}))
	require.Equal(t, kindErrorKind, classify(&errorKind{}))
}

func TestTypeRegistryBeatsPredicate(t *testing.T) {
	// int is callable, but the registry classifies it as a type reference.
	intBuiltin := starlark.Universe["int"].(*starlark.Builtin)
	require.Equal(t, kindTypeRef, classify(intBuiltin))
	require.Equal(t, kindPredicate, classify(starlark.Universe["len"]))
}

func TestWithinTrailerOnlySetOnce(t *testing.T) {
	msgs := failures(t, `expect(more(more(str)), 42)`)
	require.Len(t, msgs, 1)
	require.Equal(t, 1, strings.Count(msgs[0], "within:"))
}
