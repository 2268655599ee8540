package expect

import "fmt"

// UsageError signifies a malformed use of one of the dialect's constructs,
// such as a non-sequence fns argument to side_effects, or is_in applied to
// a value that is neither a mapping nor a sequence. It is raised, never
// recorded as a mere assertion failure.
type UsageError string

var _ error = UsageError("")

func (e UsageError) Error() string { return string(e) }

func usageErrorf(format string, args ...interface{}) UsageError {
	return UsageError(fmt.Sprintf(format, args...))
}
