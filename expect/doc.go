/*Package expect implements an expectations-style assertion dialect for
Starlark, reporting through the host Go test framework.

One builtin carries the whole surface: expect(expected, actual, msg=None).
The shape of the expected form selects the check:

  expect(4, 2 + 2)                          # structural equality
  expect(lambda x: x % 2 == 0, 4)           # predicate: truthy application
  expect(int, 42)                           # type reference
  expect(regexp.compile("fo+"), "foobar")   # pattern found within string
  expect(":age", 31)                        # registered spec conforms
  expect(eval_error, lambda: 1 // 0)        # calling actual raises

Compound expected forms expand recursively:

  expect(more(is_even, is_small), 4)        # every sub-form, same actual
  expect(more_to(1, "first", 3, "last"), p) # thread actual through transforms
  expect(more_of(lambda p: [(1, p[0]), (2, p[1])]), pair)

Actual wrappers change how the expectation is applied:

  expect(is_even, is_in([2, 4, 6]))         # every element, one diagnostic
  expect({"a": 1}, is_in({"a": 1, "c": 4})) # submap restricted to expected keys
  expect(2, from_each([1, 2, 3], lambda x: min(x, 2)))

side_effects(fns, within) replaces functions with recording stand-ins for
the duration of within and returns the captured argument lists in call
order:

  calls = side_effects([send, (deliver, True)], lambda send, deliver: ...)

Reports flow through the Reporter seam (satisfied by *testing.T); see the
startest package for running .star files under go test.
*/
package expect
