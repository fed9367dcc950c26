package pipeline

import "testpipe/internal/domain/testrun"

// Collector accumulates assertion failures across a test run without
// unwinding execution. Failures keep the order in which they were raised.
type Collector struct {
	failures []*testrun.AssertionFailure
}

// NewCollector builds an empty collector for one run.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a failure to the run's report.
func (c *Collector) Record(failure *testrun.AssertionFailure) {
	if failure == nil {
		return
	}
	c.failures = append(c.failures, failure)
}

// RunIsolated executes one unit of work, typically a single handler call.
// An assertion-style error is recorded and swallowed so one failing handler
// cannot suppress its siblings. Any other error propagates untouched: the
// orchestrator's module-loop guard is the only place unexpected failures
// are converted.
func (c *Collector) RunIsolated(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if testrun.IsAssertion(err) {
		for _, failure := range testrun.Assertions(err) {
			c.Record(failure)
		}
		return nil
	}
	return err
}

// Failures returns the collected failures in the order raised.
func (c *Collector) Failures() []*testrun.AssertionFailure {
	return c.failures
}
