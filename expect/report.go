package expect

import (
	"fmt"

	"go.starlark.net/starlark"
)

const localKey = "expect.Reporter"

// A Reporter is the primitive assertion sink every expectation ultimately
// reports through. It is satisfied by *testing.T. Pass/fail bookkeeping
// belongs to the host framework, not to this package.
type Reporter interface {
	Error(args ...interface{})
}

// A FailureReporter is a Reporter that understands structured failure
// reports. When the thread's reporter implements it, plain equality
// failures are delivered as a Report carrying a deep value diff instead of
// a rendered message string.
type FailureReporter interface {
	Reporter
	ReportFailure(Report)
}

// A Report is the structured form of one equality failure.
type Report struct {
	Type     string // always "fail"
	Message  string
	Expected starlark.Value
	Actual   starlark.Value
	Diffs    []Diff
}

// A Diff pairs an actual value with what would have to be added to it and
// removed from it to obtain the expected value.
type Diff struct {
	Actual  starlark.Value
	Added   starlark.Value // None when nothing is missing
	Removed starlark.Value // None when nothing is extra
}

// SetReporter associates an error reporter (such as a testing.T in a Go
// test) with the Starlark thread so that expectations may report to it.
func SetReporter(thread *starlark.Thread, r Reporter) {
	thread.SetLocal(localKey, r)
}

// GetReporter returns the Starlark thread's error reporter.
// It must be preceded by a call to SetReporter.
func GetReporter(thread *starlark.Thread) Reporter {
	r, ok := thread.Local(localKey).(Reporter)
	if !ok {
		panic("internal error: expect.SetReporter was not called")
	}
	return r
}

// LookupReporter returns the thread's reporter, or nil when none was set.
func LookupReporter(thread *starlark.Thread) Reporter {
	r, _ := thread.Local(localKey).(Reporter)
	return r
}

func withReporter(thread *starlark.Thread, r Reporter, f func() error) error {
	prev := GetReporter(thread)
	SetReporter(thread, r)
	defer SetReporter(thread, prev)
	return f()
}

// recording buffers reports so the is_in aggregate path can decide which
// of them to surface. It deliberately does not implement FailureReporter:
// re-reported element failures are always message strings.
type recording struct {
	msgs []string
}

var _ Reporter = (*recording)(nil)

func (r *recording) Error(args ...interface{}) {
	r.msgs = append(r.msgs, fmt.Sprint(args...))
}
