package ports

import (
	"context"

	"testpipe/internal/domain/testrun"
)

// TestRunner executes one test case end to end.
type TestRunner interface {
	RunTest(ctx context.Context, test testrun.Test) testrun.Result
}
