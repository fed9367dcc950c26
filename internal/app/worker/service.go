// Package worker pulls test cases from a producer and runs each one
// through a fresh pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/ports"
)

// RunnerFactory builds a fresh runner for one test case. Handlers and the
// metadata pass accumulate per-run state, so a runner is never shared
// between tests.
type RunnerFactory func() (ports.TestRunner, error)

// Service coordinates test execution with bounded parallelism.
type Service struct {
	newRunner RunnerFactory
}

// NewService constructs a Service with the provided runner factory.
func NewService(factory RunnerFactory) *Service {
	return &Service{newRunner: factory}
}

// RunFromProducer pulls tests from the supplied producer and runs them with
// bounded parallelism.
//
// If maxTests is greater than zero the loop stops after that many tests.
// Otherwise it keeps consuming until the context is cancelled or the
// producer signals completion via io.EOF.
//
// When onResult is provided it is invoked after every run with the run
// result. It may be called from multiple goroutines at once.
func (s *Service) RunFromProducer(
	ctx context.Context,
	producer ports.TestProducer,
	maxTests int,
	maxParallel int,
	onResult func(testrun.Result),
) error {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)
	processed := 0

	finish := func(err error) error {
		wg.Wait()
		return err
	}

	for {
		if maxTests > 0 && processed >= maxTests {
			return finish(nil)
		}

		test, err := producer.NextTest(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return finish(nil)
			}

			return finish(fmt.Errorf("get next test: %w", err))
		}

		sem <- struct{}{}
		wg.Add(1)
		processed++
		go func(test testrun.Test) {
			defer wg.Done()
			defer func() { <-sem }()

			result := s.runOne(ctx, test)
			if onResult != nil {
				onResult(result)
			}
		}(test)
	}
}

func (s *Service) runOne(ctx context.Context, test testrun.Test) testrun.Result {
	runner, err := s.newRunner()
	if err != nil {
		return testrun.Result{
			TestID:   test.ID,
			Failures: []*testrun.AssertionFailure{testrun.AssertCause("runner setup failed", err)},
		}
	}
	return runner.RunTest(ctx, test)
}
