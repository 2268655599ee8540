// Package regexp provides regular expression values for the dialect.
//
// regexp.compile(pattern) compiles a pattern in RE2 syntax to a value of
// type 'regexp'. A pattern value used as an expected form asserts that the
// pattern is found within the actual string; it also offers matches, find,
// find_all, find_submatches, replace_all and split methods.
package regexp // import "github.com/NoahTheDuke/starlark-expect/lib/regexp"

import (
	"fmt"
	"regexp"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Module exposes the regexp builtins to Starlark.
var Module = &starlarkstruct.Module{
	Name: "regexp",
	Members: starlark.StringDict{
		"compile": starlark.NewBuiltin("compile", compile),
	},
}

// A Regexp is a compiled RE2 regular expression value.
type Regexp struct {
	re *regexp.Regexp
}

var (
	_ starlark.Value    = (*Regexp)(nil)
	_ starlark.HasAttrs = (*Regexp)(nil)
)

// Compile compiles a pattern from Go code.
func Compile(pattern string) (*Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regexp{re: re}, nil
}

// MatchString reports whether the pattern is found within s.
func (r *Regexp) MatchString(s string) bool { return r.re.MatchString(s) }

func (r *Regexp) String() string        { return r.re.String() }
func (r *Regexp) Type() string          { return "regexp" }
func (r *Regexp) Freeze()               {}
func (r *Regexp) Truth() starlark.Bool  { return true }
func (r *Regexp) Hash() (uint32, error) { return starlark.String(r.re.String()).Hash() }

func (r *Regexp) Attr(name string) (starlark.Value, error) {
	b := methods[name]
	if b == nil {
		return nil, nil // no such method
	}
	return b.BindReceiver(r), nil
}

func (r *Regexp) AttrNames() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var methods = map[string]*starlark.Builtin{
	"find":            starlark.NewBuiltin("find", find),
	"find_all":        starlark.NewBuiltin("find_all", findAll),
	"find_submatches": starlark.NewBuiltin("find_submatches", findSubmatches),
	"matches":         starlark.NewBuiltin("matches", matches),
	"replace_all":     starlark.NewBuiltin("replace_all", replaceAll),
	"split":           starlark.NewBuiltin("split", split),
}

func compile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &pattern); err != nil {
		return nil, err
	}
	re, err := Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return re, nil
}

func recvPattern(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (*regexp.Regexp, string, error) {
	var src string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &src); err != nil {
		return nil, "", err
	}
	return b.Receiver().(*Regexp).re, src, nil
}

func matches(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	re, src, err := recvPattern(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(re.MatchString(src)), nil
}

func find(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	re, src, err := recvPattern(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.String(re.FindString(src)), nil
}

func findAll(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		src string
		max = -1
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &src, &max); err != nil {
		return nil, err
	}
	re := b.Receiver().(*Regexp).re
	return toList(re.FindAllString(src, max)), nil
}

func findSubmatches(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	re, src, err := recvPattern(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return toList(re.FindStringSubmatch(src)), nil
}

// replace_all(src, repl) replaces every match in src with repl. Submatch
// references use Go expansion syntax ($1, ${name}).
func replaceAll(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src, repl string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &src, &repl); err != nil {
		return nil, err
	}
	re := b.Receiver().(*Regexp).re
	return starlark.String(re.ReplaceAllString(src, repl)), nil
}

func split(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		src string
		max = -1
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &src, &max); err != nil {
		return nil, err
	}
	re := b.Receiver().(*Regexp).re
	return toList(re.Split(src, max)), nil
}

func toList(strs []string) *starlark.List {
	elems := make([]starlark.Value, len(strs))
	for i, s := range strs {
		elems[i] = starlark.String(s)
	}
	return starlark.NewList(elems)
}
