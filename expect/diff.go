package expect

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// stringDiff renders the difference between two unequal strings: a unified
// context diff when both are multiline, otherwise the three-way split into
// common prefix, expected tail, and actual tail.
func stringDiff(expected, actual string) string {
	if strings.Contains(expected, "\n") && strings.Contains(actual, "\n") {
		diff := difflib.ContextDiff{
			A:        difflib.SplitLines(expected),
			B:        difflib.SplitLines(actual),
			FromFile: "Expected",
			ToFile:   "Actual",
			Context:  3,
			Eol:      "\n",
		}
		pretty, err := difflib.GetContextDiffString(diff)
		if err == nil && pretty != "" {
			return pretty
		}
	}
	prefix := commonPrefix(expected, actual)
	return fmt.Sprintf("  matches: %q\n  expected suffix: %q\n  actual suffix: %q",
		prefix, expected[len(prefix):], actual[len(prefix):])
}

func commonPrefix(a, b string) string {
	ar, br := []rune(a), []rune(b)
	n := len(ar)
	if len(br) < n {
		n = len(br)
	}
	i := 0
	for i < n && ar[i] == br[i] {
		i++
	}
	return string(ar[:i])
}

// valueDiff computes what would have to be added to the actual value and
// removed from it to obtain the expected value. Mappings and sequences are
// compared structurally; anything else diffs wholesale. Either result is
// None when that side is empty.
func valueDiff(expected, actual starlark.Value) (added, removed starlark.Value) {
	if em, ok := expected.(starlark.IterableMapping); ok {
		if am, ok := actual.(starlark.IterableMapping); ok {
			return mappingDiff(em, am)
		}
	}
	if ei, ok := expected.(starlark.Indexable); ok {
		if ai, ok := actual.(starlark.Indexable); ok {
			return indexableDiff(ei, ai)
		}
	}
	return expected, actual
}

func mappingDiff(em, am starlark.IterableMapping) (starlark.Value, starlark.Value) {
	added := starlark.NewDict(0)
	removed := starlark.NewDict(0)
	for _, item := range em.Items() {
		k, ev := item[0], item[1]
		av, found, err := am.Get(k)
		if err != nil || !found {
			setKey(added, k, ev)
			continue
		}
		if eq, err := starlark.Compare(syntax.EQL, ev, av); err == nil && eq {
			continue
		}
		subAdded, subRemoved := valueDiff(ev, av)
		if subAdded != starlark.None {
			setKey(added, k, subAdded)
		}
		if subRemoved != starlark.None {
			setKey(removed, k, subRemoved)
		}
	}
	for _, item := range am.Items() {
		k, av := item[0], item[1]
		if _, found, err := em.Get(k); err == nil && !found {
			setKey(removed, k, av)
		}
	}
	return noneIfEmptyDict(added), noneIfEmptyDict(removed)
}

func indexableDiff(ei, ai starlark.Indexable) (starlark.Value, starlark.Value) {
	var added, removed []starlark.Value
	n := ei.Len()
	if ai.Len() < n {
		n = ai.Len()
	}
	for i := 0; i < n; i++ {
		ev, av := ei.Index(i), ai.Index(i)
		if eq, err := starlark.Compare(syntax.EQL, ev, av); err == nil && eq {
			continue
		}
		added = append(added, ev)
		removed = append(removed, av)
	}
	for i := n; i < ei.Len(); i++ {
		added = append(added, ei.Index(i))
	}
	for i := n; i < ai.Len(); i++ {
		removed = append(removed, ai.Index(i))
	}
	return noneIfEmptyList(added), noneIfEmptyList(removed)
}

func setKey(d *starlark.Dict, k, v starlark.Value) {
	_ = d.SetKey(k, v) // unhashable keys cannot appear in a dict being diffed
}

func noneIfEmptyDict(d *starlark.Dict) starlark.Value {
	if d.Len() == 0 {
		return starlark.None
	}
	return d
}

func noneIfEmptyList(vs []starlark.Value) starlark.Value {
	if len(vs) == 0 {
		return starlark.None
	}
	return starlark.NewList(vs)
}
