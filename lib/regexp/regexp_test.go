package regexp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func exec(t *testing.T, program string) (starlark.StringDict, error) {
	t.Helper()
	thread := &starlark.Thread{Name: t.Name()}
	predeclared := starlark.StringDict{"regexp": Module}
	return starlark.ExecFile(thread, t.Name()+".star", program, predeclared)
}

func TestCompileAndMatches(t *testing.T) {
	globals, err := exec(t, `
p = regexp.compile("fo+")
a = p.matches("foobar")
b = p.matches("barbaz")
`)
	require.NoError(t, err)
	require.Equal(t, starlark.True, globals["a"])
	require.Equal(t, starlark.False, globals["b"])
}

func TestCompileBadPattern(t *testing.T) {
	_, err := exec(t, `regexp.compile("(")`)
	require.Error(t, err)
}

func TestFind(t *testing.T) {
	globals, err := exec(t, `
p = regexp.compile("o+")
found = p.find("foooba")
all_found = p.find_all("foo boo")
subs = regexp.compile("(f)(o+)").find_submatches("foo")
parts = regexp.compile(",").split("a,b,c")
`)
	require.NoError(t, err)
	require.Equal(t, `"ooo"`, globals["found"].String())
	require.Equal(t, `["oo", "oo"]`, globals["all_found"].String())
	require.Equal(t, `["foo", "f", "oo"]`, globals["subs"].String())
	require.Equal(t, `["a", "b", "c"]`, globals["parts"].String())
}

func TestReplaceAll(t *testing.T) {
	globals, err := exec(t, `
plain = regexp.compile("o+").replace_all("foo boo", "0")
subref = regexp.compile("(\\w+)@(\\w+)").replace_all("a@b", "$2@$1")
`)
	require.NoError(t, err)
	require.Equal(t, `"f0 b0"`, globals["plain"].String())
	require.Equal(t, `"b@a"`, globals["subref"].String())
}

func TestGoMatchString(t *testing.T) {
	re, err := Compile("ab+")
	require.NoError(t, err)
	require.True(t, re.MatchString("xabby"))
	require.False(t, re.MatchString("xay"))
	require.Equal(t, "regexp", re.Type())
}
