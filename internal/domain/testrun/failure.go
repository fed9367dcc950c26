package testrun

import "fmt"

// AssertionFailure is a recorded expected-vs-actual mismatch. It never
// aborts a run on its own: handlers return it, the collector accumulates
// it, and the final result reports every accumulated failure together.
type AssertionFailure struct {
	Msg   string
	Cause error
}

func (f *AssertionFailure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Msg, f.Cause)
	}
	return f.Msg
}

func (f *AssertionFailure) Unwrap() error { return f.Cause }

// Assertf builds an assertion failure from a format string.
func Assertf(format string, args ...any) *AssertionFailure {
	return &AssertionFailure{Msg: fmt.Sprintf(format, args...)}
}

// AssertCause wraps an underlying error as an assertion failure.
func AssertCause(msg string, cause error) *AssertionFailure {
	return &AssertionFailure{Msg: msg, Cause: cause}
}

// IsAssertion reports whether err consists solely of assertion failures.
//
// A single *AssertionFailure qualifies, as does any errors.Join tree whose
// branches all qualify. Anything else is an unexpected failure and must
// abort the module loop instead of being swallowed.
func IsAssertion(err error) bool {
	return len(Assertions(err)) > 0 && allAssertions(err)
}

// Assertions flattens err into the assertion failures it is built from,
// in their original order. Non-assertion branches are skipped.
func Assertions(err error) []*AssertionFailure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*AssertionFailure); ok {
		return []*AssertionFailure{f}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var failures []*AssertionFailure
		for _, sub := range joined.Unwrap() {
			failures = append(failures, Assertions(sub)...)
		}
		return failures
	}
	return nil
}

func allAssertions(err error) bool {
	if err == nil {
		return true
	}
	if _, ok := err.(*AssertionFailure); ok {
		return true
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	subs := joined.Unwrap()
	if len(subs) == 0 {
		return false
	}
	for _, sub := range subs {
		if !allAssertions(sub) {
			return false
		}
	}
	return true
}
