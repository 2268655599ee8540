// Package repl provides a read/eval/print loop for trying the expectation
// dialect interactively.
//
// It supports readline-style command editing and interrupts through
// Control-C. If an input line can be parsed as an expression, it is
// evaluated and its result printed; otherwise lines are read until a blank
// line and executed as statements. Expectation failures are printed
// immediately through the thread's reporter.
package repl // import "github.com/NoahTheDuke/starlark-expect/repl"

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/NoahTheDuke/starlark-expect/expect"
)

var interrupted = make(chan os.Signal, 1)

// REPL executes a read, eval, print loop over the given globals. The
// dialect universe should be part of the thread's predeclared globals;
// when the thread has no reporter yet, failures print to stderr.
func REPL(thread *starlark.Thread, globals starlark.StringDict) {
	if expect.LookupReporter(thread) == nil {
		expect.SetReporter(thread, stderrReporter{})
	}

	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New("expect> ")
	if err != nil {
		PrintError(err)
		return
	}
	defer rl.Close()
	for {
		if err := rep(rl, thread, globals); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(err)
				continue
			}
			break
		}
	}
	fmt.Println()
}

// rep reads, evaluates, and prints one item. It returns an error (possibly
// readline.ErrInterrupt) only if readline failed; Starlark errors are
// printed.
func rep(rl *readline.Instance, thread *starlark.Thread, globals starlark.StringDict) error {
	// Each item gets its own context, cancelled by a SIGINT.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupted:
			cancel()
		case <-ctx.Done():
		}
	}()

	thread.SetLocal("context", ctx)

	eof := false
	rl.SetPrompt("expect> ")
	readLine := func() ([]byte, error) {
		line, err := rl.Readline()
		rl.SetPrompt("    ... ")
		if err != nil {
			if err == io.EOF {
				eof = true
			}
			return nil, err
		}
		return []byte(line + "\n"), nil
	}

	f, err := syntax.ParseCompoundStmt("<stdin>", readLine)
	if err != nil {
		if eof {
			return io.EOF
		}
		PrintError(err)
		return nil
	}

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExpr(thread, expr, globals)
		if err != nil {
			PrintError(err)
			return nil
		}
		if v != starlark.None {
			fmt.Println(v)
		}
	} else if err := starlark.ExecREPLChunk(f, thread, globals); err != nil {
		PrintError(err)
		return nil
	}

	return nil
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// PrintError prints the error to stderr, or its backtrace if it is a
// Starlark evaluation error.
func PrintError(err error) {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		fmt.Fprintln(os.Stderr, evalErr.Backtrace())
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
}

type stderrReporter struct{}

func (stderrReporter) Error(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
}
