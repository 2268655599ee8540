// The starlark-expect command runs expectation test files standalone.
//
// With one or more .star files (or -manifest suite.yaml), it executes each
// file's tests and exits non-zero on any failure. With no arguments it
// starts a read-eval-print loop with the dialect preloaded.
package main // import "github.com/NoahTheDuke/starlark-expect/cmd/starlark-expect"

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/NoahTheDuke/starlark-expect/expect"
	"github.com/NoahTheDuke/starlark-expect/repl"
	"github.com/NoahTheDuke/starlark-expect/startest"
)

var (
	verbose  = flag.Bool("v", false, "log each test as it runs")
	manifest = flag.String("manifest", "", "yaml `file` listing test files to run")
)

// A suiteManifest is the yaml form of a run: the files to execute and
// options applying to all of them.
type suiteManifest struct {
	Files   []string `yaml:"files"`
	Verbose bool     `yaml:"verbose"`
}

func main() {
	os.Exit(doMain())
}

func doMain() int {
	flag.Parse()

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)

	files := flag.Args()
	if *manifest != "" {
		data, err := os.ReadFile(*manifest)
		if err != nil {
			logrus.Error(err)
			return 1
		}
		var m suiteManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			logrus.Errorf("%s: %v", *manifest, err)
			return 1
		}
		files = append(files, m.Files...)
		if m.Verbose {
			*verbose = true
		}
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if len(files) == 0 {
		fmt.Println("Welcome to starlark-expect")
		thread := &starlark.Thread{Name: "REPL"}
		repl.REPL(thread, expect.Universe())
		return 0
	}

	reporter := &consoleReporter{
		out:   os.Stdout,
		color: term.IsTerminal(int(os.Stdout.Fd())),
	}
	failed := false
	for _, filename := range files {
		if !runFile(filename, reporter) {
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

// runFile executes one test file and reports whether it passed.
func runFile(filename string, reporter *consoleReporter) bool {
	thread := &starlark.Thread{
		Name: "run " + filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}
	expect.SetReporter(thread, reporter)

	suite, err := startest.Load(thread, filename, nil, nil)
	if err != nil {
		repl.PrintError(err)
		return false
	}
	if err := suite.Before(thread); err != nil {
		repl.PrintError(err)
		return false
	}
	defer func() {
		if err := suite.After(thread); err != nil {
			repl.PrintError(err)
		}
	}()

	before := reporter.failures
	errored := false
	for _, name := range suite.Names() {
		logrus.Debugf("%s: running %s", filename, name)
		if err := suite.Run(thread, name, reporter); err != nil {
			reporter.errorf("ERROR %s: %v", name, err)
			errored = true
		}
	}
	n := len(suite.Names())
	if reporter.failures > before || errored {
		reporter.errorf("FAIL %s (%d tests, %d failures)", filename, n, reporter.failures-before)
		return false
	}
	fmt.Fprintf(reporter.out, "ok   %s (%d tests)\n", filename, n)
	return true
}

// consoleReporter renders failures to the terminal. It implements
// expect.FailureReporter, so plain equality failures arrive as structured
// reports with deep value diffs.
type consoleReporter struct {
	out      io.Writer
	color    bool
	failures int
}

var _ expect.FailureReporter = (*consoleReporter)(nil)

func (r *consoleReporter) Error(args ...interface{}) {
	r.failures++
	fmt.Fprintf(r.out, "%s %s\n", r.paint("FAIL:"), fmt.Sprint(args...))
}

func (r *consoleReporter) ReportFailure(rep expect.Report) {
	r.failures++
	fmt.Fprintf(r.out, "%s %s\n", r.paint("FAIL:"), rep.Message)
	fmt.Fprintf(r.out, "  expected: %s\n", rep.Expected.String())
	fmt.Fprintf(r.out, "  actual:   %s\n", rep.Actual.String())
	for _, d := range rep.Diffs {
		if d.Added != starlark.None {
			fmt.Fprintf(r.out, "  missing:  %s\n", d.Added.String())
		}
		if d.Removed != starlark.None {
			fmt.Fprintf(r.out, "  extra:    %s\n", d.Removed.String())
		}
	}
}

func (r *consoleReporter) errorf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, "%s\n", r.paint(fmt.Sprintf(format, args...)))
}

func (r *consoleReporter) paint(s string) string {
	if !r.color {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}
