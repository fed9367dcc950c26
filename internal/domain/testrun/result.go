package testrun

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one test run: every assertion failure collected
// anywhere in the run, in the order raised. A run passes iff the set is
// empty.
type Result struct {
	TestID   string
	Failures []*AssertionFailure
	Duration time.Duration
}

// Passed reports whether the run collected zero failures.
func (r Result) Passed() bool { return len(r.Failures) == 0 }

// Err returns nil for a passing run, or a single aggregate error carrying
// every collected failure as a cause.
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	return &RunError{TestID: r.TestID, Failures: r.Failures}
}

// RunError aggregates every assertion failure of a failed run.
type RunError struct {
	TestID   string
	Failures []*AssertionFailure
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "test %q failed with %d assertion failure(s)", e.TestID, len(e.Failures))
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, f.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is/errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
